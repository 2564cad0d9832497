package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"photometa/batch"
	"time"
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	keyPrefix  = "photometa:run:"

	StatusWritten = "written"
	StatusFailed  = "failed"
)

type Client interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Entry is the value stored for each input path.
type Entry struct {
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Ledger stores the outcome of every file in a run under a single hash.
type Ledger struct {
	client Client
	key    string
	ttl    time.Duration
}

func Key(runID uuid.UUID) string {
	return keyPrefix + runID.String()
}

func New(client Client, runID uuid.UUID, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{client: client, key: Key(runID), ttl: ttl}
}

func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (l *Ledger) Key() string {
	return l.key
}

func EntryFor(res batch.Result) Entry {
	if res.Err != nil {
		return Entry{Status: StatusFailed, Error: res.Err.Error()}
	}
	return Entry{Status: StatusWritten, Output: res.Output}
}

func (l *Ledger) Record(ctx context.Context, res batch.Result) error {
	value, err := json.Marshal(EntryFor(res))
	if err != nil {
		return err
	}

	if err := l.client.HSet(ctx, l.key, res.Path, string(value)).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", l.key, err)
	}
	// refreshed on every write so the hash outlives the whole run
	if err := l.client.Expire(ctx, l.key, l.ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", l.key, err)
	}
	return nil
}
