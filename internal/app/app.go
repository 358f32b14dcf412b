// Package app wires the scanner, order-book feed, target manager and
// trading loop together and owns their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/skinarb/skinarb/internal/autotrader"
	"github.com/skinarb/skinarb/internal/marketdata"
	"github.com/skinarb/skinarb/internal/orderbook"
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/internal/storage"
	"github.com/skinarb/skinarb/internal/targets"
	"github.com/skinarb/skinarb/internal/trade"
	"github.com/skinarb/skinarb/pkg/config"
	"github.com/skinarb/skinarb/pkg/healthprobe"
	"github.com/skinarb/skinarb/pkg/httpserver"
	"github.com/skinarb/skinarb/pkg/stream"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	marketClient  *marketdata.Client
	scanner       *scanner.Scanner
	streamClient  *stream.Client
	book          *orderbook.Book
	tradeClient   *trade.Client
	store         storage.Storage
	manager       *targets.Manager
	trader        *autotrader.Trader
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
