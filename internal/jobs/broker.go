package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Broker is the message channel jobs travel through. Queues are
// provisioned implicitly on first enqueue; within one queue, jobs come
// out in FIFO order.
type Broker interface {
	Enqueue(ctx context.Context, queue string, d *Descriptor, atFront bool) error
	// Dequeue blocks up to timeout waiting for a job on any of the
	// given queues. Returns nil, nil on timeout.
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*Descriptor, error)
	// Jobs lists the descriptors currently waiting in a queue.
	Jobs(ctx context.Context, queue string) ([]*Descriptor, error)
	// RequestStop asks for abrupt termination of an in-flight job.
	RequestStop(ctx context.Context, jobID string) error
	StopRequested(ctx context.Context, jobID string) (bool, error)
	Close() error
}

// BrokerConfig carries the connection settings for the shared broker.
type BrokerConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// connection acquisition retry policy: fixed one-second wait, capped
// attempts, then fail fatally
const (
	connRetryWait     = time.Second
	connRetryAttempts = 10
)

const stopKeyPrefix = "leapbase:stop:"

// RedisBroker implements Broker over a shared, lazily-initialized redis
// connection. One instance serves the whole process.
type RedisBroker struct {
	cfg BrokerConfig

	mu     sync.Mutex
	client *redis.Client
}

// NewRedisBroker creates a broker. No connection is made until first
// use.
func NewRedisBroker(cfg BrokerConfig) *RedisBroker {
	return &RedisBroker{cfg: cfg}
}

// conn returns the shared connection, establishing it on first use with
// bounded fixed-interval retries against transient connectivity errors.
func (b *RedisBroker) conn(ctx context.Context) (*redis.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     b.cfg.Addr,
		Username: b.cfg.Username,
		Password: b.cfg.Password,
		DB:       b.cfg.DB,
	})

	backoff := retry.WithMaxRetries(connRetryAttempts-1, retry.NewConstant(connRetryWait))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("job broker unreachable at %s: %w", b.cfg.Addr, err)
	}

	b.client = client
	return client, nil
}

func (b *RedisBroker) Enqueue(ctx context.Context, queue string, d *Descriptor, atFront bool) error {
	client, err := b.conn(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to serialize job %s: %w", d.ID, err)
	}

	// LPUSH head + BRPOP tail gives FIFO; front-of-queue jobs go to the
	// tail instead
	if atFront {
		err = client.RPush(ctx, queue, payload).Err()
	} else {
		err = client.LPush(ctx, queue, payload).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s on %s: %w", d.ID, queue, err)
	}
	return nil
}

func (b *RedisBroker) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*Descriptor, error) {
	client, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.BRPop(ctx, timeout, queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	// result is [queue, payload]
	var d Descriptor
	if err := json.Unmarshal([]byte(result[1]), &d); err != nil {
		return nil, fmt.Errorf("failed to decode job payload from %s: %w", result[0], err)
	}
	return &d, nil
}

func (b *RedisBroker) Jobs(ctx context.Context, queue string) ([]*Descriptor, error) {
	client, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	payloads, err := client.LRange(ctx, queue, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs on %s: %w", queue, err)
	}

	out := make([]*Descriptor, 0, len(payloads))
	for _, payload := range payloads {
		var d Descriptor
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			continue
		}
		out = append(out, &d)
	}
	return out, nil
}

func (b *RedisBroker) RequestStop(ctx context.Context, jobID string) error {
	client, err := b.conn(ctx)
	if err != nil {
		return err
	}
	return client.Set(ctx, stopKeyPrefix+jobID, "1", time.Hour).Err()
}

func (b *RedisBroker) StopRequested(ctx context.Context, jobID string) (bool, error) {
	client, err := b.conn(ctx)
	if err != nil {
		return false, err
	}
	n, err := client.Exists(ctx, stopKeyPrefix+jobID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}
