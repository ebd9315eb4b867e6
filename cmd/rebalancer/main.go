package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/aman-zulfiqar/genius-solver/internal/app"
	"github.com/aman-zulfiqar/genius-solver/internal/config"
	"github.com/aman-zulfiqar/genius-solver/internal/execution"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/rebalance"
)

func parseRatios(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, p := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ratio %q", p)
		}
		out = append(out, f)
	}
	return out, nil
}

func main() {
	mode := flag.String("mode", "instructions", "instructions | execute")
	ratios := flag.String("ratios", "", "comma-separated target share per vault (default: even split)")
	in := flag.String("in", "", "signed instructions JSON (execute mode)")
	index := flag.Int("batch-index", 0, "first action to build")
	size := flag.Int("batch-size", 10, "number of actions to build")
	execute := flag.Bool("execute", false, "broadcast the action payloads")
	flag.Parse()

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

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build rebalancer")
	}
	defer a.Close()

	var out any
	switch *mode {
	case "instructions":
		r, err := parseRatios(*ratios)
		if err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
		if a.Planner == nil {
			logger.Error("instructions need ORCHESTRATOR_EVM_PRIVATE_KEY")
			return
		}
		set, err := a.Planner.BuildInstructions(ctx, r)
		if err != nil {
			logger.WithError(err).Error("failed to build instructions")
			return
		}
		out = set

	case "execute":
		if *in == "" {
			fmt.Println("missing -in")
			os.Exit(2)
		}
		if a.Executor == nil {
			logger.Error("execute needs a quote provider (INTENTS_API_URL or JUPITER_BASE_URL)")
			return
		}
		raw, err := os.ReadFile(*in)
		if err != nil {
			logger.WithError(err).Fatal("failed to read instructions")
		}
		var set models.SignedInstructionSet
		if err := json.Unmarshal(raw, &set); err != nil {
			logger.WithError(err).Fatal("invalid instructions file")
		}
		payloads, err := a.Executor.Execute(ctx, set, rebalance.Batch{Index: *index, Size: *size})
		if err != nil {
			logger.WithError(err).Error("failed to build payloads")
			return
		}
		if !*execute {
			out = payloads
			break
		}
		if a.Execution == nil {
			logger.Error("execution needs ORCHESTRATOR_EVM_PRIVATE_KEY")
			return
		}
		out = map[string]any{
			"payloads": payloads,
			"outcomes": a.Execution.ExecutePayloads(ctx, execution.KindRebalance, payloads),
		}

	default:
		fmt.Println("invalid -mode (use instructions|execute)")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.WithError(err).Error("failed to write result")
	}
}
