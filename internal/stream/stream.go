// Package stream maintains the long-lived server-sent-event subscription for
// one dashboard subject. The stream is only a change signal: events lost
// across a reconnect gap are never redelivered, and the reconciler's policy
// of re-pulling full state on every event is what restores consistency.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/pool-dashboard/internal/observability"
)

// Config tunes the reconnect backoff.
type Config struct {
	RetryMin time.Duration
	RetryMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.RetryMin <= 0 {
		c.RetryMin = time.Second
	}
	if c.RetryMax < c.RetryMin {
		c.RetryMax = 30 * time.Second
	}
	return c
}

// Subscription is a live stream connection. Close is idempotent.
type Subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Close tears the subscription down. Safe to call repeatedly.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Done is closed once the subscription's goroutine has fully exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Open subscribes to url and delivers every recognized event to onEvent from
// a single goroutine. Transport failures never surface to the caller: the
// subscription logs degraded status and reconnects with doubling backoff,
// reset after a successful connect. Kinds outside the given set are dropped.
func Open(ctx context.Context, url, role string, kinds []Kind, onEvent func(Event), logger *slog.Logger, cfg Config) *Subscription {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	allowed := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	// Streaming reads must not share a client with bounded request
	// timeouts; the connection is expected to stay open indefinitely.
	client := &http.Client{}

	go func() {
		defer close(sub.done)
		defer observability.StreamConnected.WithLabelValues(role).Set(0)

		backoff := cfg.RetryMin
		for {
			connected, err := consume(ctx, client, url, role, allowed, onEvent)
			if ctx.Err() != nil {
				return
			}
			if connected {
				backoff = cfg.RetryMin
			}
			observability.StreamConnected.WithLabelValues(role).Set(0)
			observability.StreamReconnectsTotal.WithLabelValues(role).Inc()
			logger.Warn("event stream disconnected, reconnecting",
				"role", role, "url", url, "backoff", backoff.String(), "error", fmt.Sprint(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > cfg.RetryMax {
				backoff = cfg.RetryMax
			}
		}
	}()
	return sub
}

// consume runs one connection until it drops. It reports whether the connect
// itself succeeded so the caller can reset its backoff.
func consume(ctx context.Context, client *http.Client, url, role string, allowed map[Kind]bool, onEvent func(Event)) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream endpoint returned %s", resp.Status)
	}
	observability.StreamConnected.WithLabelValues(role).Set(1)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventName != "" {
				if allowed[Kind(eventName)] {
					observability.StreamEventsTotal.WithLabelValues(role, eventName).Inc()
					onEvent(Event{Kind: Kind(eventName), Payload: decodePayload(data.String())})
				}
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return true, err
	}
	return true, fmt.Errorf("stream closed by server")
}

// decodePayload parses the event body as JSON when possible; a payload that
// fails to parse is passed through as raw text, never dropped.
func decodePayload(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
