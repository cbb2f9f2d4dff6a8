package model

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB executes queries and decodes rows to instances. The API layer depends
// on this interface so tests can substitute an in-memory implementation.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) ([]Instance, error)
}

// PgxDB is the production DB backed by a pgx connection pool.
type PgxDB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect creates a pool and verifies connectivity, retrying with
// exponential backoff until the context is done or the retry budget runs out.
func Connect(ctx context.Context, connString string, logger *zap.Logger) (*PgxDB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	err = backoff.Retry(func() error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not ready, retrying", zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &PgxDB{pool: pool, logger: logger}, nil
}

func (db *PgxDB) Query(ctx context.Context, sql string, args ...any) ([]Instance, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToInstances(rows)
}

func (db *PgxDB) Close() {
	db.pool.Close()
}

func rowsToInstances(rows pgx.Rows) ([]Instance, error) {
	fieldDescriptions := rows.FieldDescriptions()
	columnNames := make([]string, len(fieldDescriptions))
	for i, fd := range fieldDescriptions {
		columnNames[i] = string(fd.Name)
	}

	var result []Instance

	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePointers := make([]any, len(columnNames))
		for i := range values {
			valuePointers[i] = &values[i]
		}

		if err := rows.Scan(valuePointers...); err != nil {
			return nil, err
		}

		row := make(Instance, len(columnNames))
		for i, name := range columnNames {
			row[name] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
