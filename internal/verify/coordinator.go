package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/logger"
	"github.com/alevsk/rollout-scope/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"k8s.io/utils/clock"
)

// Coordinator polls targets until they are verified or the time budget is spent.
type Coordinator struct {
	registry *Registry
	client   kube.Client
	clock    clock.Clock
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// WithMetrics records run, cycle and check metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(co *Coordinator) {
		co.metrics = m
	}
}

// WithTracer emits a span per run and per check.
func WithTracer(t trace.Tracer) Option {
	return func(co *Coordinator) {
		co.tracer = t
	}
}

// NewCoordinator creates a coordinator that resolves verifiers from registry
// and queries the cluster through client.
func NewCoordinator(registry *Registry, client kube.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		client:   client,
		clock:    clock.RealClock{},
		tracer:   noop.NewTracerProvider().Tracer(telemetry.ServiceName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run verifies targets, polling every pollInterval until all of them are
// verified or timeout elapses. Each cycle checks all unresolved targets
// concurrently and joins before deciding whether to continue. Reaching the
// deadline is not an error: the report says which targets failed. Checks are
// bounded by the deadline too, so a hung query cannot stall the run. When ctx is
// canceled during the sleep between cycles, the report so far is returned
// together with ctx.Err().
func (c *Coordinator) Run(ctx context.Context, targets []Target, pollInterval, timeout time.Duration) (*Report, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeout, timeout)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, pollInterval)
	}
	if c.registry == nil || c.client == nil {
		return nil, ErrMissingClient
	}

	start := c.clock.Now()
	deadline := start.Add(timeout)
	report := &Report{
		RunID:    uuid.NewString(),
		Started:  start,
		Outcomes: make([]Outcome, len(targets)),
	}
	for i, t := range targets {
		report.Outcomes[i] = Outcome{Target: t, Detail: PendingDetail, Timestamp: start}
	}

	ctx, span := c.tracer.Start(ctx, "verify.Run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.Int("targets", len(targets)),
		attribute.String("timeout", timeout.String()),
		attribute.String("poll_interval", pollInterval.String()),
	))
	defer span.End()
	c.metrics.RecordRunStarted()

	logger.Info().
		Str("run", report.RunID).
		Int("targets", len(targets)).
		Dur("interval", pollInterval).
		Dur("timeout", timeout).
		Msg("starting verification")

	var runErr error
	for {
		pending := unresolved(report.Outcomes)
		if len(pending) == 0 {
			break
		}
		report.Cycles++
		c.runCycle(ctx, report, pending, deadline, pollInterval)

		if allVerified(report.Outcomes) {
			break
		}
		if !c.clock.Now().Add(pollInterval).Before(deadline) {
			report.TimedOut = true
			break
		}
		select {
		case <-c.clock.After(pollInterval):
		case <-ctx.Done():
			runErr = ctx.Err()
		}
		if runErr != nil {
			break
		}
	}

	report.AllVerified = allVerified(report.Outcomes)
	report.Elapsed = c.clock.Since(start)

	result := "verified"
	switch {
	case runErr != nil:
		result = "canceled"
		telemetry.RecordError(span, runErr)
	case report.AllVerified:
	case report.TimedOut:
		result = "timeout"
	default:
		result = "failed"
	}
	c.metrics.RecordRunCompleted(result, report.Elapsed)
	span.SetAttributes(
		attribute.Bool("all_verified", report.AllVerified),
		attribute.Int("cycles", report.Cycles),
	)

	logger.Info().
		Str("run", report.RunID).
		Str("result", result).
		Int("cycles", report.Cycles).
		Dur("elapsed", report.Elapsed).
		Int("failed", len(report.Failed())).
		Msg("verification finished")

	return report, runErr
}

// runCycle checks every pending target concurrently and joins on the results.
// Checks share a context that expires at the run deadline, or one poll interval
// after the cycle starts if that is later. A check still running when it expires
// is recorded as not verified and its late result is dropped.
func (c *Coordinator) runCycle(ctx context.Context, report *Report, pending []int, deadline time.Time, pollInterval time.Duration) {
	c.metrics.RecordCycle()
	logger.Debug().
		Str("run", report.RunID).
		Int("cycle", report.Cycles).
		Int("pending", len(pending)).
		Msg("starting poll cycle")

	budget := deadline.Sub(c.clock.Now())
	if budget < pollInterval {
		budget = pollInterval
	}
	cycleCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		index   int
		outcome Outcome
	}
	results := make(chan result, len(pending))
	for _, i := range pending {
		go func(i int, target Target) {
			results <- result{index: i, outcome: c.check(cycleCtx, target)}
		}(i, report.Outcomes[i].Target)
	}

	finished := make(map[int]bool, len(pending))
	for len(finished) < len(pending) {
		select {
		case r := <-results:
			report.Outcomes[r.index] = r.outcome
			finished[r.index] = true
		case <-cycleCtx.Done():
			for drained := false; !drained; {
				select {
				case r := <-results:
					report.Outcomes[r.index] = r.outcome
					finished[r.index] = true
				default:
					drained = true
				}
			}
			for _, i := range pending {
				if finished[i] {
					continue
				}
				target := report.Outcomes[i].Target
				report.Outcomes[i] = NotVerified(target, "check did not finish: %v", cycleCtx.Err())
				report.Outcomes[i].Timestamp = c.clock.Now()
				finished[i] = true
				logger.Warn().
					Str("run", report.RunID).
					Str("target", target.String()).
					Dur("budget", budget).
					Msg("abandoned check")
			}
		}
	}

	for _, i := range pending {
		o := report.Outcomes[i]
		logger.Debug().
			Int("cycle", report.Cycles).
			Str("target", o.Target.String()).
			Bool("verified", o.Verified).
			Str("detail", o.Detail).
			Msg("checked target")
	}
}

// check runs the verifier for one target. A panicking verifier yields a
// negative outcome instead of taking down the run.
func (c *Coordinator) check(ctx context.Context, target Target) (outcome Outcome) {
	ctx, span := c.tracer.Start(ctx, "verify.Check", trace.WithAttributes(
		attribute.String("target.api_version", target.APIVersion),
		attribute.String("target.kind", target.Kind),
		attribute.String("target.name", target.Name),
		attribute.String("target.namespace", target.Namespace),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			outcome = NotVerified(target, "verifier panicked: %v", r)
			outcome.Timestamp = c.clock.Now()
			telemetry.RecordError(span, fmt.Errorf("verifier panicked: %v", r))
		}
		c.metrics.RecordCheck(target.Kind, outcome.Verified)
		span.SetAttributes(attribute.Bool("verified", outcome.Verified))
	}()

	verifier := c.registry.Resolve(target.APIVersion, target.Kind)
	outcome = verifier.Verify(ctx, c.client, target)
	outcome.Target = target
	outcome.Timestamp = c.clock.Now()
	return outcome
}

func unresolved(outcomes []Outcome) []int {
	var pending []int
	for i, o := range outcomes {
		if !o.Verified {
			pending = append(pending, i)
		}
	}
	return pending
}
