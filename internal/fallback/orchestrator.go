package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexusai/nexus/internal/limiter"
	"github.com/nexusai/nexus/internal/logging"
)

// ErrAllModelsExhausted is returned when every model in the hierarchy
// rejected the request with a rate-limit error. Callers map it to a
// service-unavailable response and point users at CheckAvailability.
var ErrAllModelsExhausted = errors.New("all models exhausted")

// Generator produces text from a single named model. It is implemented by
// gemini.Client and by test fakes.
type Generator interface {
	Generate(ctx context.Context, model, prompt, systemInstruction string) (string, error)
}

// Result carries the text of a successful generation together with the model
// that produced it, so callers can surface which tier actually answered.
type Result struct {
	Text             string
	ModelUsed        string
	ModelDisplayName string
}

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	// Hierarchy is the ordered list of models to try. Defaults to
	// DefaultHierarchy().
	Hierarchy []ModelDescriptor

	// TransientAttempts is the number of attempts per model for transient
	// errors, including the first. Defaults to 2.
	TransientAttempts uint

	// TransientDelay is the backoff before the first retry. It doubles on
	// each subsequent retry. Defaults to 500ms.
	TransientDelay time.Duration

	// ResetWindow is how long the exhausted flag holds before the
	// hierarchy is probed again. Defaults to DefaultResetWindow.
	ResetWindow time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Hierarchy) == 0 {
		c.Hierarchy = DefaultHierarchy()
	}
	if c.TransientAttempts == 0 {
		c.TransientAttempts = 2
	}
	if c.TransientDelay <= 0 {
		c.TransientDelay = 500 * time.Millisecond
	}
	if c.ResetWindow <= 0 {
		c.ResetWindow = DefaultResetWindow
	}
	return c
}

// Orchestrator walks the model hierarchy in rank order until one model
// answers. Rate-limit errors cascade to the next model, transient errors are
// retried in place, and fatal errors abort the whole call.
type Orchestrator struct {
	gen     Generator
	limits  *limiter.Limiter
	state   *ExhaustionState
	cfg     Config
	metrics *orchestratorMetrics
	now     func() time.Time
}

// New builds an Orchestrator around gen. limits may be nil, in which case no
// admission control is applied (used by one-shot CLI commands).
func New(gen Generator, limits *limiter.Limiter, cfg Config, reg prometheus.Registerer) *Orchestrator {
	cfg = cfg.withDefaults()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Orchestrator{
		gen:     gen,
		limits:  limits,
		state:   NewExhaustionState(cfg.ResetWindow),
		cfg:     cfg,
		metrics: newOrchestratorMetrics(reg),
		now:     time.Now,
	}
}

// Generate runs the fallback cascade for a single prompt. Admission is
// checked once up front and the slot is held until the call returns, on every
// path.
func (o *Orchestrator) Generate(ctx context.Context, userID, prompt, systemInstruction string) (*Result, error) {
	log := logging.FromContext(ctx)

	if available, remaining := o.state.Check(o.now()); !available {
		o.metrics.generationsTotal.WithLabelValues("exhausted").Inc()
		return nil, fmt.Errorf("%w: retry in %s", ErrAllModelsExhausted, remaining.Round(time.Second))
	}
	o.metrics.exhausted.Set(0)

	if o.limits != nil {
		token, err := o.limits.TryAdmit(userID)
		if err != nil {
			o.metrics.generationsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		defer token.Release()
	}

	allRateLimited := true
	var lastErr error

	for _, model := range o.cfg.Hierarchy {
		text, err := o.tryModel(ctx, model.ID, prompt, systemInstruction)
		if err == nil {
			o.metrics.attemptsTotal.WithLabelValues(model.ID, "ok").Inc()
			o.metrics.generationsTotal.WithLabelValues("ok").Inc()
			return &Result{
				Text:             text,
				ModelUsed:        model.ID,
				ModelDisplayName: model.DisplayName,
			}, nil
		}

		kind := Classify(err)
		o.metrics.attemptsTotal.WithLabelValues(model.ID, kind.String()).Inc()
		lastErr = err

		switch kind {
		case KindRateLimited:
			log.Warn("model rate limited, falling back",
				slog.String("model", model.ID),
				slog.String("error", err.Error()))
		case KindUnavailable, KindTransient:
			// Transient errors already used up their retries inside
			// tryModel. Both kinds cascade to the next model.
			allRateLimited = false
			log.Warn("model failed, falling back",
				slog.String("model", model.ID),
				slog.String("kind", kind.String()),
				slog.String("error", err.Error()))
		default:
			allRateLimited = false
			o.metrics.generationsTotal.WithLabelValues("fatal").Inc()
			log.Error("model returned fatal error",
				slog.String("model", model.ID),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("generate with %s: %w", model.ID, err)
		}
	}

	if allRateLimited {
		o.state.Mark(o.now())
		o.metrics.exhausted.Set(1)
		o.metrics.generationsTotal.WithLabelValues("exhausted").Inc()
		log.Error("all models rate limited, marking hierarchy exhausted",
			slog.Int("models", len(o.cfg.Hierarchy)))
		return nil, ErrAllModelsExhausted
	}

	o.metrics.generationsTotal.WithLabelValues("fatal").Inc()
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

// tryModel calls a single model, retrying transient errors in place with
// exponential backoff. Non-transient errors return immediately.
func (o *Orchestrator) tryModel(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return o.gen.Generate(ctx, model, prompt, systemInstruction)
		},
		retry.Context(ctx),
		retry.Attempts(o.cfg.TransientAttempts),
		retry.Delay(o.cfg.TransientDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return Classify(err) == KindTransient
		}),
	)
}

// CheckAvailability reports whether the hierarchy is accepting requests and a
// human-readable status message. A positive answer clears the exhausted flag
// once the reset window has elapsed.
func (o *Orchestrator) CheckAvailability() (bool, string) {
	available, remaining := o.state.Check(o.now())
	if !available {
		secs := int(remaining.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		return false, fmt.Sprintf("Service temporarily unavailable. Please try again in %d seconds.", secs)
	}
	o.metrics.exhausted.Set(0)
	return true, "Service available"
}
