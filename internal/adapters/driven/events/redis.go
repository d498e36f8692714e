package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure RedisSink implements the interface.
var _ driven.EventSink = (*RedisSink)(nil)

// RedisSink publishes each event to a pub/sub channel.
type RedisSink struct {
	client  rueidis.Client
	channel string
}

// RedisConfig configures a redis sink.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int

	// Channel defaults to "lore.events".
	Channel string
}

// NewRedisSink connects to redis and returns a publishing sink.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("%w: redis addrs required", domain.ErrInvalidInput)
	}
	if cfg.Channel == "" {
		cfg.Channel = "lore.events"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating redis client: %w", err)
	}
	return &RedisSink{client: client, channel: cfg.Channel}, nil
}

// Name returns the sink identifier.
func (s *RedisSink) Name() string { return "redis" }

// Emit publishes the event JSON to the configured channel.
func (s *RedisSink) Emit(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	cmd := s.client.B().Publish().Channel(s.channel).Message(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *RedisSink) Close() {
	s.client.Close()
}
