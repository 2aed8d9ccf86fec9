package main

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"distribution/pkg/common/config"
	"distribution/pkg/domain/model"
	"distribution/pkg/domain/service"
	"distribution/pkg/infrastructure/dispatcher"
	"distribution/pkg/infrastructure/store/dynamo"
	"distribution/pkg/infrastructure/store/memory"
	"distribution/pkg/infrastructure/store/mysql"
)

// backend is the selected item store plus its schema provisioning.
type backend struct {
	store   model.ItemStore
	migrate func(ctx context.Context) error
	close   func() error
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		tableConfig := dynamo.Config{Table: cfg.DynamoDBTableName, CategoryIndex: cfg.DynamoDBCategoryIndex}
		return &backend{
			store: dynamo.NewStore(client, tableConfig),
			migrate: func(ctx context.Context) error {
				return dynamo.CreateTable(ctx, client, tableConfig)
			},
			close: func() error { return nil },
		}, nil
	case config.BackendMySQL:
		dsn := cfg.MySQLDSN
		if dsn == "" {
			dsn = mysql.DSN(cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLDatabase)
		}
		db, err := mysql.Open(ctx, dsn)
		if err != nil {
			return nil, &model.StoreError{Op: "connect", Err: err}
		}
		return &backend{
			store: mysql.NewStore(db),
			migrate: func(context.Context) error {
				return mysql.Migrate(db.DB)
			},
			close: db.Close,
		}, nil
	case config.BackendMemory:
		return &backend{
			store: memory.NewStore(),
			migrate: func(context.Context) error {
				log.Info("memory store needs no schema")
				return nil
			},
			close: func() error { return nil },
		}, nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

type services struct {
	customers service.CustomerService
	products  service.ProductService
	queries   service.QueryService
	ledger    service.LedgerService
}

func newServices(store model.ItemStore, events service.EventDispatcher, cfg *config.Config, logger log.FieldLogger) *services {
	customers := service.NewCustomerService(store, events, logger)
	products := service.NewProductService(store, events, logger)
	queries := service.NewQueryService(store, customers, service.QueryConfig{
		DefaultLimit:    cfg.DefaultPageLimit,
		LookupScanLimit: cfg.OrderLookupScanLimit,
	})
	return &services{
		customers: customers,
		products:  products,
		queries:   queries,
		ledger:    service.NewLedgerService(store, customers, products, queries, events, logger),
	}
}

// newDispatcher always logs events and additionally publishes them when brokers are configured.
func newDispatcher(cfg *config.Config, logger log.FieldLogger) (service.EventDispatcher, func() error) {
	logDispatcher := dispatcher.NewLogDispatcher(logger)
	if len(cfg.KafkaBrokers) == 0 {
		return logDispatcher, func() error { return nil }
	}
	kafka := dispatcher.NewKafkaDispatcher(dispatcher.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
	return dispatcher.FanOut{logDispatcher, kafka}, kafka.Close
}
