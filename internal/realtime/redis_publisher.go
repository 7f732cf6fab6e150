// Package realtime pushes events to connected clients over Redis pub/sub.
// Gateways subscribe to per-user and per-auction channels and forward to sockets.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Envelope is the message written to a channel.
type Envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// RedisPublisher publishes without retries; a message nobody is subscribed to is lost.
type RedisPublisher struct {
	client  redisPublishClient
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisPublisher builds a publisher. A nil client yields a publisher that delivers nothing.
func NewRedisPublisher(client *redis.Client, prefix string, timeout time.Duration, logger *zap.Logger) *RedisPublisher {
	p := newPublisher(nil, prefix, timeout, logger)
	if client != nil {
		p.client = client
	}
	return p
}

func newPublisher(client redisPublishClient, prefix string, timeout time.Duration, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &RedisPublisher{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UserChannel names the channel carrying events for one user.
func (p *RedisPublisher) UserChannel(userID string) string {
	return fmt.Sprintf("%s:user:%s", p.prefix, userID)
}

// AuctionChannel names the channel carrying live bids for one auction.
func (p *RedisPublisher) AuctionChannel(auctionID string) string {
	return fmt.Sprintf("%s:auction:%s", p.prefix, auctionID)
}

// Publish sends event to the user and reports whether a subscriber received it.
func (p *RedisPublisher) Publish(ctx context.Context, userID, event string, payload any) bool {
	return p.publish(ctx, p.UserChannel(userID), event, payload)
}

// PublishAuction sends event to everyone watching the auction.
func (p *RedisPublisher) PublishAuction(ctx context.Context, auctionID, event string, payload any) bool {
	return p.publish(ctx, p.AuctionChannel(auctionID), event, payload)
}

func (p *RedisPublisher) publish(ctx context.Context, channel, event string, payload any) bool {
	if p == nil || p.client == nil {
		return false
	}

	message, err := json.Marshal(Envelope{Event: event, Payload: payload, SentAt: p.now()})
	if err != nil {
		p.logger.Warn("encode live event", zap.String("channel", channel), zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	receivers, err := p.client.Publish(ctx, channel, message).Result()
	if err != nil {
		p.logger.Warn("publish live event", zap.String("channel", channel), zap.String("event", event), zap.Error(err))
		return false
	}
	return receivers > 0
}
