// Package publish fans decoded device data out over Redis pub/sub.
package publish

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// historyLen caps the per-opcode backlog list.
const historyLen = 1000

// Envelope is the JSON message published for every frame.
type Envelope struct {
	ID        uuid.UUID `json:"id"`
	Opcode    int       `json:"opcode"` // wire code
	Name      string    `json:"name"`
	Final     bool      `json:"final"`
	Timestamp int64     `json:"timestamp"` // unix ms
	Payload   any       `json:"payload"`
}

// NewEnvelope wraps dd. Raw byte payloads are rendered as hex.
func NewEnvelope(dd protocol.DeviceData, now time.Time) Envelope {
	env := Envelope{
		ID:        uuid.New(),
		Name:      dd.Opcode.String(),
		Final:     dd.Final,
		Timestamp: now.UnixMilli(),
		Payload:   dd.Payload,
	}
	if e, ok := protocol.Lookup(dd.Opcode); ok {
		env.Opcode = int(e.Code)
	}
	if raw, ok := dd.Payload.(protocol.RawFields); ok {
		out := make(map[string]any, len(raw))
		for k, v := range raw {
			if b, ok := v.([]byte); ok {
				out[k] = hex.EncodeToString(b)
				continue
			}
			out[k] = v
		}
		if code, ok := raw["code"].(int); ok && dd.Opcode == protocol.DataError {
			env.Opcode = code
		}
		env.Payload = out
	}
	return env
}

// ListKey is the Redis list holding recent envelopes for op.
func ListKey(channel string, op protocol.Opcode) string {
	return fmt.Sprintf("%s:%s:events", channel, op)
}

type Publisher struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
	now     func() time.Time
}

// New connects to Redis and checks the connection with PING.
func New(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) (*Publisher, error) {
	if log == nil {
		log = config.Log
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis %s", cfg.Addr)
	}
	log.WithField("addr", cfg.Addr).Debug("redis connected")
	return &Publisher{client: client, channel: cfg.Channel, log: log, now: time.Now}, nil
}

// Publish sends dd to the channel and appends it to the opcode's backlog
// list. A failed backlog write is only logged.
func (p *Publisher) Publish(ctx context.Context, dd protocol.DeviceData) error {
	data, err := json.Marshal(NewEnvelope(dd, p.now()))
	if err != nil {
		return errors.Wrapf(err, "marshal %s", dd.Opcode)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return errors.Wrap(err, "publish")
	}
	key := ListKey(p.channel, dd.Opcode)
	pipe := p.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("backlog write failed")
	}
	return nil
}

// PublishBatch publishes every item in one round trip.
func (p *Publisher) PublishBatch(ctx context.Context, batch []protocol.DeviceData) error {
	pipe := p.client.Pipeline()
	now := p.now()
	for _, dd := range batch {
		data, err := json.Marshal(NewEnvelope(dd, now))
		if err != nil {
			p.log.WithError(err).WithField("opcode", dd.Opcode).Error("marshal failed")
			continue
		}
		pipe.Publish(ctx, p.channel, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
