package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/models"
)

// ErrUnexpectedSSEStatus is returned when SSE returns an unexpected status code.
var ErrUnexpectedSSEStatus = errors.New("unexpected SSE status code")

// subscriberBuffer is the per-subscriber queue size.
const subscriberBuffer = 100

// sseManager owns a single shared SSE connection to /events and fans
// received updates out to local subscribers. The connection is opened when
// the first subscriber arrives and torn down when the last one leaves.
type sseManager struct {
	client *Client

	mu     sync.RWMutex
	subs   map[*events.Subscription]struct{}
	cancel context.CancelFunc
	closed bool
}

// newSSEManager creates a new SSE manager.
func newSSEManager(client *Client) *sseManager {
	return &sseManager{
		client: client,
		subs:   make(map[*events.Subscription]struct{}),
	}
}

// subscribe creates a new subscription to state updates.
func (m *sseManager) subscribe(_ context.Context) (*events.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, events.ErrPublisherClosed
	}

	sub := events.NewSubscription(subscriberBuffer)
	m.subs[sub] = struct{}{}

	// First subscriber opens the shared connection.
	if m.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		go m.runConnection(ctx)
	}

	return sub, nil
}

// unsubscribe removes a subscription and closes the shared connection when
// no subscribers remain. Safe to call more than once.
func (m *sseManager) unsubscribe(sub *events.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub]; !ok {
		return
	}
	delete(m.subs, sub)
	sub.Close()

	if len(m.subs) == 0 && m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// runConnection manages the SSE connection lifecycle with reconnection.
func (m *sseManager) runConnection(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := m.connectSSE(ctx)
		if err != nil {
			// Exponential backoff with max 30 seconds
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		// Reset backoff on clean disconnect
		backoff = time.Second
	}
}

// connectSSE establishes an SSE connection and processes events until the
// stream ends or the context is cancelled.
func (m *sseManager) connectSSE(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.client.baseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared httpClient carries a request timeout that would cut the
	// stream short, so the streaming request uses its own client.
	streamClient := &http.Client{Transport: m.client.httpClient.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return ErrUnexpectedSSEStatus
	}

	// Process SSE events
	scanner := bufio.NewScanner(resp.Body)
	var currentEvent sseEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if currentEvent.data != "" {
				m.processEvent(currentEvent)
			}
			currentEvent = sseEvent{}
			continue
		}

		// Parse SSE fields
		if strings.HasPrefix(line, "event:") {
			currentEvent.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			currentEvent.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	return nil
}

// sseEvent represents a single SSE event.
type sseEvent struct {
	event string
	data  string
}

// processEvent fans a single SSE event out to subscribers. Snapshot frames
// are forwarded like updates: they carry whatever was committed before the
// stream was (re)established, which a subscriber's own GET /items snapshot
// may predate. Subscribers dedup by seq, so a frame they already hold is
// dropped and a frame they missed closes the gap.
func (m *sseManager) processEvent(event sseEvent) {
	if event.event != "update" && event.event != "snapshot" {
		return
	}

	var update models.StateUpdate
	if err := json.Unmarshal([]byte(event.data), &update); err != nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.subs {
		// Drop when the subscriber's queue is full.
		sub.TrySend(&update)
	}
}

// close closes all subscriptions and the shared connection.
func (m *sseManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	for sub := range m.subs {
		sub.Close()
		delete(m.subs, sub)
	}
}
