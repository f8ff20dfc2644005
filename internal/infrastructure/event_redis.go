package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/yt-sync-go/internal/domain"
	"go.uber.org/zap"
)

// RedisEventPublisher broadcasts every job event, progress included, on a pub/sub channel
type RedisEventPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// ConnectRedis creates a client from config and verifies the connection
func ConnectRedis(ctx context.Context, cfg *domain.RedisConfig, logger *zap.Logger) (*RedisEventPublisher, func(), error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Redis publisher initialized",
		zap.String("addr", cfg.Addr),
		zap.String("channel", cfg.Channel))

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis client", zap.Error(err))
		}
	}
	return NewRedisEventPublisher(rdb, cfg.Channel, logger), cleanup, nil
}

// NewRedisEventPublisher creates a publisher over an existing client
func NewRedisEventPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{rdb: rdb, channel: channel, logger: logger.Named("redis")}
}

// OnJobEvent implements domain.JobListener
func (p *RedisEventPublisher) OnJobEvent(event domain.JobEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.Publish(ctx, event)
}

// Publish sends one event to the channel
func (p *RedisEventPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	data, err := NewJobEventEnvelope(event).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			zap.Error(err),
			zap.String("job_id", event.Job.ID),
			zap.String("type", string(event.Type)))
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
