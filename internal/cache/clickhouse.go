package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

const executionsSchema = `
	CREATE TABLE IF NOT EXISTS executions (
		id String,
		kind LowCardinality(String),
		chain_id UInt32,
		tx_hashes Array(String),
		success Bool,
		fallback Bool,
		error String,
		created_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (created_at, id)
`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore is the execution audit log.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, executionsSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create executions table: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

func (c *ClickHouseStore) InsertExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	query := `
		INSERT INTO executions (
			id, kind, chain_id, tx_hashes, success, fallback, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	hashes := rec.TxHashes
	if hashes == nil {
		hashes = []string{}
	}
	err := c.conn.Exec(ctx, query,
		rec.ID,
		rec.Kind,
		uint32(rec.ChainID),
		hashes,
		rec.Success,
		rec.Fallback,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) RecentExecutions(ctx context.Context, limit int) ([]*models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.conn.Query(ctx, `
		SELECT id, kind, chain_id, tx_hashes, success, fallback, error, created_at
		FROM executions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ExecutionRecord, 0, limit)
	for rows.Next() {
		var (
			rec   models.ExecutionRecord
			chain uint32
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &chain, &rec.TxHashes, &rec.Success, &rec.Fallback, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		rec.ChainID = models.ChainID(chain)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read executions: %w", err)
	}
	return out, nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
