package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/genius-solver/internal/app"
	"github.com/aman-zulfiqar/genius-solver/internal/config"
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/solver"
)

func main() {
	mode := flag.String("mode", "fill", "fill | status | revert")
	in := flag.String("in", "", "JSON file with {orders, swapsCalls, arbitraryCalls}")
	execute := flag.Bool("execute", false, "broadcast the fill payloads")
	flag.Parse()

	if *in == "" {
		fmt.Println("missing -in")
		os.Exit(2)
	}

	logger := config.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.SetOutput(os.Stderr)
	config.LoadDotEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	raw, err := os.ReadFile(*in)
	if err != nil {
		logger.WithError(err).Fatal("failed to read orders")
	}
	var req solver.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.WithError(err).Fatal("invalid orders file")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build solver")
	}
	defer a.Close()

	var out any
	switch *mode {
	case "fill":
		res, err := a.Pipeline.Solve(ctx, req)
		if err != nil {
			logger.WithError(err).Error("solve failed")
			return
		}
		if !*execute {
			out = res
			break
		}
		if a.Execution == nil {
			logger.Error("execution needs ORCHESTRATOR_EVM_PRIVATE_KEY")
			return
		}
		outcomes := a.Execution.ExecutePayloads(ctx, execution.KindFill, res.Payloads)
		out = map[string]any{"result": res, "outcomes": outcomes}

	case "status":
		items, err := a.Pipeline.OrderStatuses(ctx, req.Orders)
		if err != nil {
			logger.WithError(err).Error("status read failed")
			return
		}
		out = items

	case "revert":
		if a.Reverter == nil {
			logger.Error("revert needs ORCHESTRATOR_EVM_PRIVATE_KEY")
			return
		}
		sigs := make([]map[string]string, 0, len(req.Orders))
		for _, o := range req.Orders {
			sig, err := a.Reverter.Sign(ctx, o)
			entry := map[string]string{"seed": o.Seed}
			if err != nil {
				entry["error"] = err.Error()
			} else {
				entry["signature"] = sig
			}
			sigs = append(sigs, entry)
		}
		out = sigs

	default:
		fmt.Println("invalid -mode (use fill|status|revert)")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.WithError(err).Error("failed to write result")
	}
}
