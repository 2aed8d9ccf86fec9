package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

type Config struct {
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"dynamodb"`

	DynamoDBTableName     string `envconfig:"DYNAMODB_TABLE_NAME" default:"distribution-app-dev"`
	DynamoDBCategoryIndex string `envconfig:"DYNAMODB_CATEGORY_INDEX" default:"EntityTypeIndex"`
	DynamoDBEndpoint      string `envconfig:"DYNAMODB_ENDPOINT"`
	AWSRegion             string `envconfig:"AWS_REGION" default:"eu-central-1"`

	MySQLDSN      string `envconfig:"MYSQL_DSN"`
	MySQLHost     string `envconfig:"MYSQL_HOST" default:"127.0.0.1"`
	MySQLPort     string `envconfig:"MYSQL_PORT" default:"3306"`
	MySQLUser     string `envconfig:"MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"MYSQL_PASSWORD"`
	MySQLDatabase string `envconfig:"MYSQL_DATABASE" default:"distribution"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"distribution-ledger-events"`

	OrderLookupScanLimit int `envconfig:"ORDER_LOOKUP_SCAN_LIMIT" default:"1000"`
	DefaultPageLimit     int `envconfig:"DEFAULT_PAGE_LIMIT" default:"50"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendDynamoDB, BackendMySQL, BackendMemory:
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.OrderLookupScanLimit <= 0 {
		return errors.Errorf("ORDER_LOOKUP_SCAN_LIMIT must be positive, got %d", c.OrderLookupScanLimit)
	}
	if c.DefaultPageLimit <= 0 {
		return errors.Errorf("DEFAULT_PAGE_LIMIT must be positive, got %d", c.DefaultPageLimit)
	}

	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers
	return nil
}
