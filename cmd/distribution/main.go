package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"distribution/pkg/common/config"
	"distribution/pkg/common/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	logger, err := logging.Setup(os.Stderr, cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("failed to set up logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		waitForKillSignal(getKillSignalChan())
		cancel()
	}()

	rt := newRuntime(cfg, logger)
	err = newCLI(rt, os.Stdout).RunContext(ctx, os.Args)
	if closeErr := rt.close(); closeErr != nil {
		logger.WithError(closeErr).Warn("failed to release resources")
	}
	if err != nil {
		code := exitCode(err)
		logger.WithError(err).WithField("exit_code", code).Error("command failed")
		cancel()
		os.Exit(code)
	}
}

func getKillSignalChan() chan os.Signal {
	osKillSignalChan := make(chan os.Signal, 1)
	signal.Notify(osKillSignalChan, os.Interrupt, syscall.SIGTERM)
	return osKillSignalChan
}

func waitForKillSignal(killSignalChan <-chan os.Signal) {
	killSignal := <-killSignalChan
	switch killSignal {
	case os.Interrupt:
		log.Info("got SIGINT, cancelling")
	case syscall.SIGTERM:
		log.Info("got SIGTERM, cancelling")
	}
}
