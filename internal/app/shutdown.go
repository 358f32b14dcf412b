package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	// Shutdown components in dependency order
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Close bid stream before the book so the updates channel drains
	err = a.streamClient.Close()
	if err != nil {
		a.logger.Error("stream-close-error", zap.Error(err))
	}

	err = a.book.Close()
	if err != nil {
		a.logger.Error("orderbook-close-error", zap.Error(err))
	}

	// Close storage last: target transitions may persist until the
	// trading loop has fully stopped
	a.wg.Wait()

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")

	return nil
}
