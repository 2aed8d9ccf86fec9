package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"distribution/pkg/common/config"
)

// runtime opens the store and dispatcher on first use, so that help output
// and argument errors never touch the network.
type runtime struct {
	cfg    *config.Config
	logger log.FieldLogger
	open   func(ctx context.Context, cfg *config.Config) (*backend, error)

	backend         *backend
	services        *services
	closeDispatcher func() error
}

func newRuntime(cfg *config.Config, logger log.FieldLogger) *runtime {
	return &runtime{cfg: cfg, logger: logger, open: openBackend}
}

func (r *runtime) openStore(ctx context.Context) (*backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}
	b, err := r.open(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	r.logger.WithField("backend", r.cfg.StoreBackend).Debug("store opened")
	r.backend = b
	return b, nil
}

func (r *runtime) openServices(ctx context.Context) (*services, error) {
	if r.services != nil {
		return r.services, nil
	}
	b, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	events, closeDispatcher := newDispatcher(r.cfg, r.logger)
	r.closeDispatcher = closeDispatcher
	r.services = newServices(b.store, events, r.cfg, r.logger)
	return r.services, nil
}

func (r *runtime) close() error {
	var first error
	if r.closeDispatcher != nil {
		first = r.closeDispatcher()
	}
	if r.backend != nil {
		if err := r.backend.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
