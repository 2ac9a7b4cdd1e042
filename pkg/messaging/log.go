package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var ErrSubscribeUnsupported = errors.New("broker does not support subscriptions")

// LogBroker writes published messages to a logger. It stands in for Redis
// when no broker URL is configured.
type LogBroker struct {
	logger zerolog.Logger
}

func NewLogBroker(logger zerolog.Logger) *LogBroker {
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	b.logger.Info().
		Str("channel", channel).
		RawJSON("message", payload).
		Msg("event published")
	return nil
}

func (b *LogBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, ErrSubscribeUnsupported
}

func (b *LogBroker) Close() error {
	return nil
}
