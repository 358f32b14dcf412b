package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.TradingMode),
		zap.Strings("games", a.cfg.ScanGames),
		zap.String("log-level", a.cfg.LogLevel))

	// Start all components
	err := a.startComponents()
	if err != nil {
		return err
	}

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.ProviderWSURL))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Start bid stream
	err := a.streamClient.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start bid stream: %w", err)
	}

	// Start order book consumer
	err = a.book.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start orderbook: %w", err)
	}

	// Start trading loop
	a.wg.Add(1)
	go a.runTrader()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runTrader() {
	defer a.wg.Done()
	err := a.trader.Run(a.ctx)
	if err != nil {
		a.logger.Error("autotrader-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
