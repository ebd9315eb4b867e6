package app

import (
	"context"

	"github.com/aman-zulfiqar/genius-solver/internal/server"
)

// Handlers exposes the wired components to the HTTP API. Components that
// were not built stay nil interfaces so the API reports them unavailable.
func (a *App) Handlers() *server.Handlers {
	h := &server.Handlers{
		Quoter:     a.Quoter,
		BestQuoter: a.BestQuoter,
		Executions: a.Executions,
		DevMode:    a.Config.DevMode,
		Logger:     a.Logger,
		Checks: map[string]func(context.Context) error{
			"redis": func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		},
	}
	if a.Pipeline != nil {
		h.Solver = a.Pipeline
	}
	if a.Reverter != nil {
		h.Reverter = a.Reverter
	}
	if a.Planner != nil {
		h.Planner = a.Planner
	}
	if a.Executor != nil {
		h.Rebalancer = a.Executor
	}
	if a.Execution != nil {
		h.Executor = a.Execution
	}
	if a.Switches != nil {
		h.Switches = a.Switches
	}
	if a.Executions != nil {
		h.Checks["clickhouse"] = a.Executions.Ping
	}
	return h
}
