package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/cache"
	"github.com/aman-zulfiqar/genius-solver/internal/config"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

// main tails the execution feed published by the solver and rebalancer
func main() {
	failedOnly := flag.Bool("failed", false, "only show failed executions")
	pattern := flag.String("pattern", "", "channel pattern, e.g. executions:chain:*")
	flag.Parse()

	logger := config.NewLogger(os.Getenv("LOG_LEVEL"))
	config.LoadDotEnv(logger)
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down subscriber")
		cancel()
	}()

	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rclient.Close()
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	feed := cache.NewPubSubManager(rclient, logger)

	var (
		records <-chan *models.ExecutionRecord
		err     error
	)
	if p := strings.TrimSpace(*pattern); p != "" {
		records, err = feed.PSubscribeExecutions(ctx, p)
	} else {
		records, err = feed.SubscribeExecutions(ctx, *failedOnly)
	}
	if err != nil {
		logger.WithError(err).Fatal("failed to subscribe")
	}

	for rec := range records {
		entry := logger.WithFields(logrus.Fields{
			"id":       rec.ID,
			"kind":     rec.Kind,
			"chain":    rec.ChainID.Name(),
			"txs":      strings.Join(rec.TxHashes, ","),
			"fallback": rec.Fallback,
		})
		if !rec.Success {
			entry.WithField("error", rec.Error).Warn("execution failed")
			continue
		}
		entry.Info("execution succeeded")
	}
}
