// Package mysql keeps the keyed item layout in two InnoDB tables: items holds
// the record bodies, item_numbers holds the incrementable numeric fields.
package mysql

import (
	"context"
	"database/sql"
	"net"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"distribution/pkg/domain/model"
)

type itemRow struct {
	PK         string    `db:"pk"`
	SK         string    `db:"sk"`
	EntityType string    `db:"entity_type"`
	Name       string    `db:"name"`
	Body       []byte    `db:"body"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type numberRow struct {
	PK    string          `db:"pk"`
	SK    string          `db:"sk"`
	Field string          `db:"field"`
	Value decimal.Decimal `db:"value"`
}

const selectItemRows = "SELECT pk, sk, entity_type, name, body, updated_at FROM items"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type Store struct {
	db *sqlx.DB
}

var _ model.ItemStore = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func DSN(host, port, user, password, database string) string {
	cfg := driver.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}

func (s *Store) Put(ctx context.Context, item model.Item) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (pk, sk, entity_type, name, body, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE entity_type = VALUES(entity_type), name = VALUES(name), body = VALUES(body), updated_at = VALUES(updated_at)`,
			item.PK, item.SK, item.Category, item.Name, string(item.Body), stamp(item.UpdatedAt))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_numbers WHERE pk = ? AND sk = ?", item.PK, item.SK); err != nil {
			return err
		}
		for field, value := range item.Numbers {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO item_numbers (pk, sk, field, value) VALUES (?, ?, ?, ?)",
				item.PK, item.SK, field, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &model.StoreError{Op: "put", Err: err}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key model.Key) (*model.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, selectItemRows+" WHERE pk = ? AND sk = ?", key.PK, key.SK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrItemNotFound
	}
	if err != nil {
		return nil, &model.StoreError{Op: "get", Err: err}
	}
	items, err := s.withNumbers(ctx, s.db, []itemRow{row})
	if err != nil {
		return nil, &model.StoreError{Op: "get", Err: err}
	}
	return &items[0], nil
}

// IncrementNumericField locks the item row, so concurrent increments of one
// item are serialized while other items proceed independently.
func (s *Store) IncrementNumericField(ctx context.Context, key model.Key, field string, delta decimal.Decimal, at time.Time) (*model.Item, error) {
	var result *model.Item
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var row itemRow
		err := tx.GetContext(ctx, &row, selectItemRows+" WHERE pk = ? AND sk = ? FOR UPDATE", key.PK, key.SK)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO item_numbers (pk, sk, field, value) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE value = value + VALUES(value)`,
			key.PK, key.SK, field, delta)
		if err != nil {
			return err
		}
		row.UpdatedAt = stamp(at)
		if _, err := tx.ExecContext(ctx, "UPDATE items SET updated_at = ? WHERE pk = ? AND sk = ?", row.UpdatedAt, key.PK, key.SK); err != nil {
			return err
		}
		items, err := s.withNumbers(ctx, tx, []itemRow{row})
		if err != nil {
			return err
		}
		result = &items[0]
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrItemNotFound
	}
	if err != nil {
		return nil, &model.StoreError{Op: "increment", Err: err}
	}
	return result, nil
}

func (s *Store) ReplaceBody(ctx context.Context, key model.Key, name string, body []byte, expected, at time.Time) (*model.Item, error) {
	var result *model.Item
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var row itemRow
		err := tx.GetContext(ctx, &row, selectItemRows+" WHERE pk = ? AND sk = ? FOR UPDATE", key.PK, key.SK)
		if err != nil {
			return err
		}
		if !row.UpdatedAt.Equal(stamp(expected)) {
			return model.ErrItemConflict
		}
		row.Name = name
		row.Body = body
		row.UpdatedAt = stamp(at)
		_, err = tx.ExecContext(ctx, "UPDATE items SET name = ?, body = ?, updated_at = ? WHERE pk = ? AND sk = ?",
			row.Name, string(row.Body), row.UpdatedAt, key.PK, key.SK)
		if err != nil {
			return err
		}
		items, err := s.withNumbers(ctx, tx, []itemRow{row})
		if err != nil {
			return err
		}
		result = &items[0]
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrItemNotFound
	}
	if errors.Is(err, model.ErrItemConflict) {
		return nil, err
	}
	if err != nil {
		return nil, &model.StoreError{Op: "replace", Err: err}
	}
	return result, nil
}

func (s *Store) QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int, newestFirst bool) ([]model.Item, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := selectItemRows + " WHERE pk = ? AND sk LIKE ? ORDER BY sk " + order
	args := []interface{}{pk, likeEscaper.Replace(skPrefix) + "%"}
	return s.selectItems(ctx, "query", query, args, limit)
}

func (s *Store) QueryByCategory(ctx context.Context, category string, limit int) ([]model.Item, error) {
	query := selectItemRows + " WHERE entity_type = ? ORDER BY name, pk"
	return s.selectItems(ctx, "query", query, []interface{}{category}, limit)
}

func (s *Store) selectItems(ctx context.Context, op, query string, args []interface{}, limit int) ([]model.Item, error) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &model.StoreError{Op: op, Err: err}
	}
	items, err := s.withNumbers(ctx, s.db, rows)
	if err != nil {
		return nil, &model.StoreError{Op: op, Err: err}
	}
	return items, nil
}

func (s *Store) withNumbers(ctx context.Context, q sqlx.ExtContext, rows []itemRow) ([]model.Item, error) {
	items := make([]model.Item, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	partitions := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if !seen[row.PK] {
			seen[row.PK] = true
			partitions = append(partitions, row.PK)
		}
	}

	query, args, err := sqlx.In("SELECT pk, sk, field, value FROM item_numbers WHERE pk IN (?)", partitions)
	if err != nil {
		return nil, err
	}
	var numbers []numberRow
	if err := sqlx.SelectContext(ctx, q, &numbers, q.Rebind(query), args...); err != nil {
		return nil, err
	}

	byKey := make(map[model.Key]map[string]decimal.Decimal)
	for _, n := range numbers {
		key := model.Key{PK: n.PK, SK: n.SK}
		if byKey[key] == nil {
			byKey[key] = make(map[string]decimal.Decimal)
		}
		byKey[key][n.Field] = n.Value
	}

	for _, row := range rows {
		key := model.Key{PK: row.PK, SK: row.SK}
		items = append(items, model.Item{
			Key:       key,
			Category:  row.EntityType,
			Name:      row.Name,
			Numbers:   byKey[key],
			Body:      row.Body,
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}
	return items, nil
}

// stamp matches the microsecond precision of the DATETIME(6) columns, so a
// timestamp read back compares equal to the one written.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
