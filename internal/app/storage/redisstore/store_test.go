package redisstore

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fennr/scoring-api/internal/logging"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Addr != "localhost:6379" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.ReconnectAttempts != 3 {
		t.Fatalf("attempts = %d", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectDelay != 100*time.Millisecond {
		t.Fatalf("delay = %v", cfg.ReconnectDelay)
	}
	if cfg.ConnectTimeout != time.Second || cfg.ReadTimeout != time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.ConnectTimeout, cfg.ReadTimeout)
	}
}

func TestConfigExplicitValuesKept(t *testing.T) {
	cfg := Config{
		Addr:              "cache.internal:6380",
		DB:                2,
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Millisecond,
		ConnectTimeout:    2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}
	cfg.applyDefaults()
	if cfg.Addr != "cache.internal:6380" || cfg.DB != 2 || cfg.ReconnectAttempts != 5 {
		t.Fatalf("config mutated: %+v", cfg)
	}
}

func TestRetryableClassification(t *testing.T) {
	if retryable(nil) {
		t.Fatal("nil error marked retryable")
	}
	if retryable(redis.Nil) {
		t.Fatal("redis.Nil marked retryable")
	}
	if !retryable(&net.OpError{Op: "dial", Err: errors.New("connection refused")}) {
		t.Fatal("network error not retryable")
	}
	if !retryable(io.EOF) {
		t.Fatal("EOF not retryable")
	}
	if !retryable(context.DeadlineExceeded) {
		t.Fatal("deadline not retryable")
	}
	if retryable(errors.New("WRONGTYPE Operation against a key")) {
		t.Fatal("command error marked retryable")
	}
}

func TestNewFailsFastWithoutBackend(t *testing.T) {
	// Nothing listens on this port; construction must exhaust its attempt
	// budget and fail instead of hanging.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := New(ctx, Config{
		Addr:              "127.0.0.1:1",
		ReconnectAttempts: 2,
		ReconnectDelay:    10 * time.Millisecond,
		ConnectTimeout:    100 * time.Millisecond,
	}, nil)
	if err == nil {
		t.Fatal("expected connection failure")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("construction took %v, expected bounded retries", elapsed)
	}
}

// silentServer accepts connections, holds each one open briefly and hangs
// up without ever speaking the protocol, so every ping against it fails.
// It tracks how many accepted connections are open at once.
type silentServer struct {
	ln net.Listener

	mu      sync.Mutex
	open    int
	maxOpen int
}

func newSilentServer(t *testing.T) *silentServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &silentServer{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.open++
			if s.open > s.maxOpen {
				s.maxOpen = s.open
			}
			s.mu.Unlock()
			go func(c net.Conn) {
				time.Sleep(20 * time.Millisecond)
				s.mu.Lock()
				s.open--
				s.mu.Unlock()
				c.Close()
			}(conn)
		}
	}()
	return s
}

func (s *silentServer) maxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOpen
}

func TestConnectSerializesConcurrentCallers(t *testing.T) {
	srv := newSilentServer(t)

	cfg := Config{
		Addr:              srv.ln.Addr().String(),
		ReconnectAttempts: 1,
		ReconnectDelay:    time.Millisecond,
		ConnectTimeout:    200 * time.Millisecond,
		ReadTimeout:       200 * time.Millisecond,
	}
	cfg.applyDefaults()
	s := &Store{cfg: cfg, log: logging.New("redisstore", "error", "text")}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.connect(ctx); err == nil {
				t.Error("connect succeeded against a silent server")
			}
		}()
	}
	wg.Wait()

	// Serialized reconnection admits one connection attempt at a time;
	// unserialized callers would dial all at once.
	if got := srv.maxConcurrent(); got != 1 {
		t.Fatalf("observed %d concurrent connection attempts, want 1", got)
	}
}
