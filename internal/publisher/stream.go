package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"baken/internal/config"
	"baken/pkg/ticket"
)

// Message is one saved ticket as published on the stream.
type Message struct {
	TicketID uint                `json:"ticket_id"`
	Code     string              `json:"code"`
	Source   string              `json:"source,omitempty"`
	SavedAt  time.Time           `json:"saved_at"`
	Outcome  ticket.ParseOutcome `json:"outcome"`
}

// Publisher announces saved tickets.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	PublishBatch(ctx context.Context, msgs []*Message) error
	Close() error
}

// StreamPublisher publishes saved tickets to Redis Streams.
type StreamPublisher struct {
	redis  *redis.Client
	prefix string
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(redisClient *redis.Client, prefix string) *StreamPublisher {
	if prefix == "" {
		prefix = "tickets"
	}
	return &StreamPublisher{redis: redisClient, prefix: prefix}
}

// New connects to Redis, or returns a no-op publisher when no address is
// configured.
func New(ctx context.Context, cfg config.RedisConfig) (Publisher, error) {
	if cfg.Addr == "" {
		return Nop{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	return NewStreamPublisher(client, cfg.StreamPrefix), nil
}

// StreamKey format: {prefix}.{venue id}, falling back to the raw venue code
// for courses outside the JRA table.
func (p *StreamPublisher) StreamKey(h ticket.Header) string {
	if v, ok := h.Venue(); ok {
		return p.prefix + "." + v.ID
	}
	return p.prefix + "." + h.VenueCode
}

// Publish publishes one ticket to its venue stream.
func (p *StreamPublisher) Publish(ctx context.Context, msg *Message) error {
	key := p.StreamKey(msg.Outcome.Header)
	data, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "marshal ticket message")
	}
	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return eris.Wrapf(err, "publish to stream %s", key)
	}
	return nil
}

// PublishBatch publishes several tickets in a single pipeline.
func (p *StreamPublisher) PublishBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	pipe := p.redis.Pipeline()
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return eris.Wrapf(err, "marshal ticket %d", m.TicketID)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.StreamKey(m.Outcome.Header),
			Values: map[string]interface{}{
				"data": string(data),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrap(err, "publish pipeline")
	}
	return nil
}

func (p *StreamPublisher) Close() error { return p.redis.Close() }

// Nop discards messages.
type Nop struct{}

func (Nop) Publish(context.Context, *Message) error        { return nil }
func (Nop) PublishBatch(context.Context, []*Message) error { return nil }
func (Nop) Close() error                                   { return nil }
