// Package worker serves identity resolution requests arriving on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/metrics"
)

// Resolution modes accepted on the request topic.
const (
	ModeFuzzy = "fuzzy"
	ModeExact = "exact"
)

// Resolver is the subset of the identity resolver the worker drives.
type Resolver interface {
	Resolve(ctx context.Context, ids domain.Identifiers) (*domain.ResolutionResult, error)
	ResolveExact(ctx context.Context, ids domain.Identifiers) (*domain.ExactResolution, error)
}

// Worker resolves identities asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	resolver Resolver
	metrics  *metrics.Collector

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, resolver Resolver, m *metrics.Collector) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		resolver: resolver,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to resolution requests.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicResolveRequest, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicResolveRequest, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("resolve worker started", "topic", domain.TopicResolveRequest)
	return nil
}

// ResolveMessage is the payload of a resolution request.
type ResolveMessage struct {
	RequestID   string             `json:"request_id"`
	Mode        string             `json:"mode"`
	Identifiers domain.Identifiers `json:"identifiers"`
}

// ResultMessage is the payload published on the result and conflict topics.
type ResultMessage struct {
	RequestID  string                   `json:"request_id"`
	Mode       string                   `json:"mode"`
	Fuzzy      *domain.ResolutionResult `json:"fuzzy,omitempty"`
	Exact      *domain.ExactResolution  `json:"exact,omitempty"`
	Error      string                   `json:"error,omitempty"`
	DurationMs int64                    `json:"duration_ms"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req ResolveMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse resolve message",
			"message_id", msg.ID,
			"error", err,
		)
		w.metrics.BusMessage(domain.TopicResolveRequest, "invalid")
		w.reply(ctx, msg, &ResultMessage{RequestID: msg.ID, Error: "invalid request payload"})
		return err
	}
	w.metrics.BusMessage(domain.TopicResolveRequest, "received")

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Mode == "" {
		req.Mode = ModeFuzzy
	}

	result := w.resolve(ctx, &req)
	result.DurationMs = time.Since(start).Milliseconds()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	w.publish(ctx, domain.TopicResolveResult, payload, req.RequestID)
	if result.Exact.IsConflict() {
		w.publish(ctx, domain.TopicResolveConflict, payload, req.RequestID)
	}
	if msg.Reply != "" {
		w.respond(ctx, msg, payload)
	}

	slog.Info("resolve request processed",
		"request_id", req.RequestID,
		"mode", req.Mode,
		"error", result.Error,
		"duration_ms", result.DurationMs,
	)
	return nil
}

func (w *Worker) resolve(ctx context.Context, req *ResolveMessage) *ResultMessage {
	out := &ResultMessage{RequestID: req.RequestID, Mode: req.Mode}

	switch req.Mode {
	case ModeFuzzy:
		res, err := w.resolver.Resolve(ctx, req.Identifiers)
		out.Fuzzy = res
		if err != nil {
			out.Error = err.Error()
		}
	case ModeExact:
		res, err := w.resolver.ResolveExact(ctx, req.Identifiers)
		out.Exact = res
		if err != nil {
			out.Error = err.Error()
		}
	default:
		out.Error = fmt.Sprintf("unknown mode %q", req.Mode)
	}
	return out
}

// reply answers a request-reply caller; fire-and-forget messages are ignored.
func (w *Worker) reply(ctx context.Context, msg *domain.Message, result *ResultMessage) {
	if msg.Reply == "" {
		return
	}
	payload, _ := json.Marshal(result)
	w.respond(ctx, msg, payload)
}

func (w *Worker) respond(ctx context.Context, msg *domain.Message, payload []byte) {
	if err := w.bus.Respond(ctx, msg, payload); err != nil {
		slog.Error("failed to reply to resolve request",
			"message_id", msg.ID,
			"error", err,
		)
		w.metrics.BusMessage(msg.Reply, "error")
	}
}

func (w *Worker) publish(ctx context.Context, topic string, payload []byte, requestID string) {
	if err := w.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish resolution",
			"request_id", requestID,
			"topic", topic,
			"error", err,
		)
		w.metrics.BusMessage(topic, "error")
		return
	}
	w.metrics.BusMessage(topic, "published")
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("resolve worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
