package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

const (
	ChannelAll    = constants.PubSubChannelExecutions
	ChannelFailed = constants.PubSubChannelFailures
)

// ChainChannel is the per-chain execution channel.
func ChainChannel(chain models.ChainID) string {
	return fmt.Sprintf("executions:chain:%d", chain)
}

// PubSubManager fans execution records out over Redis pub/sub.
type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// PublishExecution publishes rec to the all, per-chain and (for failures)
// failed channels in one pipeline.
func (p *PubSubManager) PublishExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	channels := []string{ChannelAll, ChainChannel(rec.ChainID)}
	if !rec.Success {
		channels = append(channels, ChannelFailed)
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// SubscribeExecutions streams decoded records until ctx is cancelled. The
// returned channel is closed when the subscription ends.
func (p *PubSubManager) SubscribeExecutions(ctx context.Context, failuresOnly bool) (<-chan *models.ExecutionRecord, error) {
	channel := ChannelAll
	if failuresOnly {
		channel = ChannelFailed
	}
	return p.subscribe(ctx, p.client.Subscribe(ctx, channel), channel)
}

// PSubscribeExecutions is SubscribeExecutions over a channel pattern, such
// as "executions:chain:*".
func (p *PubSubManager) PSubscribeExecutions(ctx context.Context, pattern string) (<-chan *models.ExecutionRecord, error) {
	return p.subscribe(ctx, p.client.PSubscribe(ctx, pattern), pattern)
}

func (p *PubSubManager) subscribe(ctx context.Context, sub *redis.PubSub, name string) (<-chan *models.ExecutionRecord, error) {
	// confirm the subscription before returning
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	p.logger.WithField("channel", name).Info("subscribed")

	out := make(chan *models.ExecutionRecord)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec models.ExecutionRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					p.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping undecodable execution record")
					continue
				}
				select {
				case out <- &rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
