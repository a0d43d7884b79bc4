// Package worker screens files submitted through the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/laftscreen/internal/cache"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/report"
	"github.com/opensource-finance/laftscreen/internal/screening"
	"github.com/opensource-finance/laftscreen/internal/tadp"
)

// Worker consumes screening requests from the EventBus.
type Worker struct {
	bus      domain.EventBus
	screener *screening.Screener
	store    *cache.ScreeningStore
	cfg      Config

	subscriptions []domain.Subscription
	mu            sync.Mutex
	stopped       bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// ErrStopped is returned for requests delivered after Stop.
var ErrStopped = errors.New("worker stopped")

// Config holds worker configuration.
type Config struct {
	// Ingest tunes the file readers.
	Ingest ingest.Options

	// AsOf pins the evaluation date; zero means the day of the request.
	AsOf time.Time
}

// NewWorker creates a new async worker. store may be nil, in which case
// results are only published.
func NewWorker(bus domain.EventBus, screener *screening.Screener, store *cache.ScreeningStore, cfg Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		screener: screener,
		store:    store,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to screening requests.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScreeningRequested, w.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", domain.TopicScreeningRequested, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicScreeningRequested)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	if !w.begin() {
		slog.Warn("dropping screening request after stop", "message_id", msg.ID)
		return ErrStopped
	}
	defer w.wg.Done()

	var req domain.ScreeningRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse screening request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.RequestID == "" {
		req.RequestID = msg.ID
	}

	sc, err := w.process(ctx, &req)
	if err != nil {
		slog.Error("screening request failed",
			"request_id", req.RequestID,
			"source", req.Source,
			"error", err,
		)
		w.publish(ctx, domain.TopicScreeningCompleted, domain.ScreeningCompleted{
			RequestID: req.RequestID,
			Error:     err.Error(),
		})
		return err
	}

	PublishResults(ctx, w.bus, w.screener.Processor(), req.RequestID, sc)
	return nil
}

// process screens the requested file and stores the session.
func (w *Worker) process(ctx context.Context, req *domain.ScreeningRequest) (*domain.Screening, error) {
	start := time.Now()

	if req.Source == "" {
		return nil, fmt.Errorf("%w: request has no source", domain.ErrIngestion)
	}

	t, err := ingest.LoadFile(req.Source, w.cfg.Ingest)
	if err != nil {
		return nil, err
	}

	sc, err := w.screener.Screen(ctx, t, req.Source, w.cfg.AsOf)
	if err != nil {
		return nil, err
	}

	if w.store != nil {
		if err := w.store.Save(ctx, sc); err != nil {
			// The results are still published; only follow-up queries lose out.
			slog.Error("failed to save screening",
				"screening_id", sc.ID,
				"error", err,
			)
		}
	}

	slog.Info("screening request processed",
		"request_id", req.RequestID,
		"screening_id", sc.ID,
		"records", len(sc.Evaluations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sc, nil
}

func (w *Worker) publish(ctx context.Context, topic string, v any) {
	publish(ctx, w.bus, topic, v)
}

// PublishResults publishes the summary of sc to TopicScreeningCompleted and
// one AlertEvent per alerted record to TopicAlert. Failures are logged.
func PublishResults(ctx context.Context, bus domain.EventBus, processor *tadp.Processor, requestID string, sc *domain.Screening) {
	for i := range sc.Evaluations {
		e := &sc.Evaluations[i]
		if !tadp.ShouldAlert(e) {
			continue
		}
		publish(ctx, bus, domain.TopicAlert, processor.AlertEvent(sc.ID, &sc.Records[i], e))
	}

	summary := report.Summarize(sc)
	publish(ctx, bus, domain.TopicScreeningCompleted, domain.ScreeningCompleted{
		RequestID: requestID,
		Summary:   &summary,
	})
}

func publish(ctx context.Context, bus domain.EventBus, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := bus.Publish(ctx, topic, payload); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}

// begin registers an in-flight request unless the worker is stopping.
// No Add happens after Stop has set stopped.
func (w *Worker) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.wg.Add(1)
	return true
}

// Stop gracefully stops the worker and waits for in-flight requests.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
