// Package services orchestrates capture, analysis, validation, and local
// bookkeeping for one logical user action.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/griff-web/medai-client/internal/capture"
	"github.com/griff-web/medai-client/internal/diagnostics"
	"github.com/griff-web/medai-client/internal/envelope"
	"github.com/griff-web/medai-client/internal/history"
	"github.com/griff-web/medai-client/internal/metrics"
	"github.com/griff-web/medai-client/internal/utils"
)

// Clock abstracts time.Now so cooldown behaviour is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Analyzer is implemented by the diagnostics client.
type Analyzer interface {
	Analyze(ctx context.Context, req diagnostics.AnalysisRequest) (diagnostics.Report, error)
}

// AnalysisService runs one analysis end to end: cooldown check, backend
// call, history append. It guarantees the busy flag is cleared on every exit
// path so the caller can never get stuck in a processing state.
type AnalysisService struct {
	logger    *slog.Logger
	analyzer  Analyzer
	history   history.Provider
	clock     Clock
	cooldown  time.Duration
	latencies *utils.LatencyTracker

	mu      sync.Mutex
	busy    bool
	lastRun time.Time
}

// NewAnalysisService constructs the orchestration facade.
func NewAnalysisService(logger *slog.Logger, analyzer Analyzer, historyProvider history.Provider, cooldown time.Duration) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if historyProvider == nil {
		historyProvider = history.NoopProvider{}
	}
	return &AnalysisService{
		logger:    logger,
		analyzer:  analyzer,
		history:   historyProvider,
		clock:     SystemClock{},
		cooldown:  cooldown,
		latencies: utils.NewLatencyTracker(256),
	}
}

// WithClock swaps the time source. Used by tests.
func (s *AnalysisService) WithClock(clock Clock) *AnalysisService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Busy reports whether an analysis is currently running.
func (s *AnalysisService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Analyze submits one payload. Rapid repeat calls inside the cooldown window
// fail fast with a rate-limited error before any capture or network work.
func (s *AnalysisService) Analyze(ctx context.Context, payload capture.Payload, mode diagnostics.Mode) (diagnostics.Report, error) {
	now := s.clock.Now()

	s.mu.Lock()
	if s.cooldown > 0 && !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.cooldown {
		remaining := s.cooldown - now.Sub(s.lastRun)
		s.mu.Unlock()
		return diagnostics.Report{}, envelope.NewError(envelope.KindRateLimited,
			fmt.Errorf("cooldown not elapsed, %s remaining", remaining.Round(time.Millisecond)))
	}
	s.lastRun = now
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	start := time.Now()
	report, err := s.analyzer.Analyze(ctx, diagnostics.AnalysisRequest{Payload: payload, Mode: mode})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Preempted by a newer action; nothing to record or surface.
			return diagnostics.Report{}, err
		}
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		s.logger.Error("analysis failed",
			slog.String("mode", string(mode)),
			slog.String("kind", string(envelope.KindOf(err))),
			slog.Any("error", err))
		return diagnostics.Report{}, err
	}

	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	entry := history.Entry{
		ID:         uuid.NewString(),
		Mode:       string(mode),
		Diagnosis:  report.Diagnosis,
		Confidence: report.Confidence,
		Findings:   report.Findings,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		// History is best effort; a full disk must not fail the analysis.
		s.logger.Warn("history append failed", slog.Any("error", err))
	}

	return report, nil
}

// Recent returns up to limit locally recorded analyses, newest first.
func (s *AnalysisService) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.history.Recent(ctx, limit)
}
