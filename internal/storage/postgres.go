package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// SaveOpportunity records one ranked scan result.
func (p *PostgresStorage) SaveOpportunity(ctx context.Context, opp *scanner.Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, game_id, item_id, title, price, suggested_price,
			daily_volume, tier, net_profit, roi_percent,
			confidence_flags, detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		opp.ID,
		opp.Listing.GameID,
		opp.Listing.ItemID,
		opp.Listing.Title,
		opp.Listing.Price,
		opp.Listing.SuggestedPrice,
		opp.Listing.DailyVolume,
		opp.TierName,
		opp.NetProfit,
		opp.ROIPercent,
		strings.Join(opp.ConfidenceFlags, ","),
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("item-id", opp.Listing.ItemID),
		zap.String("tier", opp.TierName))

	return nil
}

// SaveTarget upserts a target's current state. Every lifecycle transition
// writes through here, so the row always reflects the latest status.
func (p *PostgresStorage) SaveTarget(ctx context.Context, target *types.Target) error {
	query := `
		INSERT INTO targets (
			request_id, provider_id, game_id, title, tier,
			current_bid, owner_budget, status, created_at, last_repriced_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (request_id) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			current_bid = EXCLUDED.current_bid,
			status = EXCLUDED.status,
			last_repriced_at = EXCLUDED.last_repriced_at
	`

	var repricedAt sql.NullTime
	if !target.LastRepricedAt.IsZero() {
		repricedAt = sql.NullTime{Time: target.LastRepricedAt, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		target.RequestID,
		target.ID,
		target.Query.GameID,
		target.Query.Title,
		target.TierName,
		target.CurrentBid,
		target.OwnerBudget,
		string(target.Status),
		target.CreatedAt,
		repricedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert target: %w", err)
	}

	p.logger.Debug("target-stored",
		zap.String("request-id", target.RequestID),
		zap.String("status", string(target.Status)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
