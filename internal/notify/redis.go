// internal/notify/redis.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChannelPrefix namespaces room channels in Redis pub/sub.
var ChannelPrefix = "uno:room:"

// RedisBus fans room updates out across server instances over Redis pub/sub.
type RedisBus struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisBus(rdb *redis.Client, logger *logrus.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, logger: logger}
}

func channel(code string) string {
	return ChannelPrefix + code + ":updates"
}

func (b *RedisBus) Publish(ctx context.Context, code string, u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if err := b.rdb.Publish(ctx, channel(code), data).Err(); err != nil {
		return fmt.Errorf("publish update for room %s: %w", code, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, code string) (<-chan Update, func()) {
	ctx, cancel := context.WithCancel(ctx)
	ps := b.rdb.Subscribe(ctx, channel(code))
	out := make(chan Update, subscriberBuffer)

	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					b.logger.WithField("room", code).Warnf("dropping malformed update: %v", err)
					continue
				}
				select {
				case out <- u:
				default:
				}
			}
		}
	}()
	return out, cancel
}
