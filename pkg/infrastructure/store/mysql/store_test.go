package mysql

import (
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("db.internal", "3307", "ledger", "s3cr:t@", "distribution")

	cfg, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.internal:3307", cfg.Addr)
	assert.Equal(t, "ledger", cfg.User)
	assert.Equal(t, "s3cr:t@", cfg.Passwd)
	assert.Equal(t, "distribution", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
}

func TestLikeEscaper(t *testing.T) {
	assert.Equal(t, `ORDER#2024`, likeEscaper.Replace("ORDER#2024"))
	assert.Equal(t, `a\%b\_c\\d`, likeEscaper.Replace(`a%b_c\d`))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"000001_create_items.down.sql",
		"000001_create_items.up.sql",
		"000002_create_item_numbers.down.sql",
		"000002_create_item_numbers.up.sql",
	}, names)
}
