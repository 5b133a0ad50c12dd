// Package app holds the demo components wired by main.go.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store is a small in-memory key/value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

type memoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	seed   map[string]string
	clock  Clock
	logger *slog.Logger
	opened time.Time
}

func (s *memoryStore) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string, len(s.seed))
	for k, v := range s.seed {
		s.data[k] = v
	}
	s.opened = s.clock.Now()
	return nil
}

func (s *memoryStore) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("store closed",
		slog.Int("keys", len(s.data)),
		slog.Duration("uptime", s.clock.Now().Sub(s.opened)))
	s.data = nil
	return nil
}

func (s *memoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *memoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		s.data[key] = value
	}
}

// Greeter builds greetings from the name held in the Store.
type Greeter struct {
	store Store
}

func (g *Greeter) Greet() string {
	name, ok := g.store.Get("name")
	if !ok {
		name = "stranger"
	}
	return fmt.Sprintf("hello %s", name)
}

// Heartbeat logs a greeting on a fixed interval while running.
type Heartbeat struct {
	greeter  *Greeter
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Heartbeat) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.logger.Info("heartbeat", slog.String("greeting", h.greeter.Greet()))
			}
		}
	}()
	return nil
}

func (h *Heartbeat) Stop(ctx context.Context) error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
