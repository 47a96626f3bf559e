// Package redisstore implements the storage.KeyValue contract on Redis
// with bounded reconnect-and-retry around every operation.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"

	"github.com/fennr/scoring-api/internal/app/storage"
	"github.com/fennr/scoring-api/internal/logging"
)

// Config holds connection parameters for the Redis backend.
type Config struct {
	Addr              string
	DB                int
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 3
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 100 * time.Millisecond
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
}

// Store is a resilient Redis-backed KeyValue store. It holds a single
// client handle; reconnection replaces the handle under a mutex so
// concurrent callers never observe a half-initialized connection or race
// to reconnect independently.
type Store struct {
	cfg Config
	log *logging.Logger

	mu     sync.RWMutex
	client *redis.Client
}

var _ storage.KeyValue = (*Store)(nil)

// New connects to Redis, retrying up to cfg.ReconnectAttempts times spaced
// cfg.ReconnectDelay apart. All attempts failing is fatal: the service does
// not start without backend connectivity.
func New(ctx context.Context, cfg Config, log *logging.Logger) (*Store, error) {
	cfg.applyDefaults()
	if log == nil {
		log = logging.New("redisstore", "info", "text")
	}

	s := &Store{cfg: cfg, log: log}
	if err := s.connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Addr, err)
	}
	return s, nil
}

func (s *Store) newClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         s.cfg.Addr,
		DB:           s.cfg.DB,
		DialTimeout:  s.cfg.ConnectTimeout,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.ReadTimeout,
		// The store owns retry policy; disable the client's internal one.
		MaxRetries: -1,
	})
}

// connect establishes a fresh client handle, pinging until the attempt
// budget runs out. The mutex serializes concurrent reconnections.
func (s *Store) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := backoff.NewConstantBackOff(s.cfg.ReconnectDelay)
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay.NextBackOff()):
			}
		}

		client := s.newClient()
		if err := client.Ping(ctx).Err(); err != nil {
			lastErr = err
			_ = client.Close()
			s.log.WithError(err).Warnf("connection attempt %d/%d failed", attempt, s.cfg.ReconnectAttempts)
			continue
		}

		if s.client != nil {
			_ = s.client.Close()
		}
		s.client = client
		return nil
	}
	return lastErr
}

func (s *Store) handle() *redis.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Close releases the backend connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// retryable reports whether err looks like a transient connectivity or
// timeout failure. Anything else (wrong type, bad command) stays permanent.
func retryable(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded)
}

// withRetry runs op, reconnecting and retrying on transient failures until
// the attempt budget is exhausted.
func (s *Store) withRetry(ctx context.Context, op func(c *redis.Client) error) error {
	delay := backoff.NewConstantBackOff(s.cfg.ReconnectDelay)
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay.NextBackOff()):
			}
			if err := s.connect(ctx); err != nil {
				lastErr = err
				continue
			}
		}

		err := op(s.handle())
		if err == nil || !retryable(err) {
			return err
		}
		lastErr = err
		s.log.WithError(err).Warnf("operation failed, retrying (attempt %d/%d)", attempt, s.cfg.ReconnectAttempts)
	}
	return lastErr
}

// Get returns the value at a plain key, surfacing backend failures.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.withRetry(ctx, func(c *redis.Client) error {
		v, err := c.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores a plain key without expiry, surfacing backend failures.
func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.withRetry(ctx, func(c *redis.Client) error {
		return c.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// CacheGet reads from the cache namespace. Backend failures read as a miss.
func (s *Store) CacheGet(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.withRetry(ctx, func(c *redis.Client) error {
		v, err := c.Get(ctx, storage.CachePrefix+key).Result()
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		s.log.WithError(err).Warnf("cache get %s failed", key)
		return "", false
	}
	return value, true
}

// CacheSet writes to the cache namespace with a TTL. Backend failures drop
// the write.
func (s *Store) CacheSet(ctx context.Context, key, value string, ttl time.Duration) bool {
	err := s.withRetry(ctx, func(c *redis.Client) error {
		return c.Set(ctx, storage.CachePrefix+key, value, ttl).Err()
	})
	if err != nil {
		s.log.WithError(err).Warnf("cache set %s failed", key)
		return false
	}
	return true
}
