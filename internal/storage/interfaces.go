package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// ExecutionStore defines the interface for the persistent execution audit log
type ExecutionStore interface {
	// InsertExecution appends one execution attempt
	InsertExecution(ctx context.Context, rec *models.ExecutionRecord) error

	// RecentExecutions returns the newest records first
	RecentExecutions(ctx context.Context, limit int) ([]*models.ExecutionRecord, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// ExecutionFeed fans execution outcomes out to live subscribers
type ExecutionFeed interface {
	// PublishExecution publishes a record to the execution channels
	PublishExecution(ctx context.Context, rec *models.ExecutionRecord) error

	// SubscribeExecutions streams records until ctx is cancelled
	SubscribeExecutions(ctx context.Context, failuresOnly bool) (<-chan *models.ExecutionRecord, error)
}

// ChainGate reports whether a destination chain is currently accepting fills
type ChainGate interface {
	ChainEnabled(ctx context.Context, chain models.ChainID) (bool, error)
}
