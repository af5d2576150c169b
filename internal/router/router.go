// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router dispatches completion requests across backends.
//
// # Description
//
// The router owns the per-request decision chain: consult the cache,
// check the target backend's circuit breaker, invoke under a per-call
// timeout, record the outcome, and fall back where the strategy allows.
// The strategy is fixed for the session; per-request variation comes
// only from complexity classification under the Dynamic strategy.
//
// # Thread Safety
//
// Router is safe for concurrent use. It never holds a cache or breaker
// lock across a backend call: state is read, locks released, the call
// made, and the outcome recorded in a fresh brief acquisition.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
	"github.com/AleutianAI/AleutianEdge/internal/backend"
	"github.com/AleutianAI/AleutianEdge/internal/breaker"
	"github.com/AleutianAI/AleutianEdge/internal/cache"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 30 * time.Second

// drainGrace is how long the router keeps waiting after cancelling a
// call before declaring the backend unresponsive and moving on.
const drainGrace = 100 * time.Millisecond

// Strategy selects the routing behavior for a session.
type Strategy int

const (
	// StrategyLocalOnly uses the local backend with no fallback.
	StrategyLocalOnly Strategy = iota

	// StrategyHybrid tries local first, then the remote backend once.
	StrategyHybrid

	// StrategyDynamic routes by complexity between the fast and quality
	// local configs, with a remote retry for failed complex requests.
	StrategyDynamic

	// StrategyCloudOnly uses the remote backend exclusively.
	StrategyCloudOnly
)

// String returns the config-file name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyLocalOnly:
		return "local_only"
	case StrategyHybrid:
		return "hybrid"
	case StrategyDynamic:
		return "dynamic"
	case StrategyCloudOnly:
		return "cloud_only"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a config-file name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "local_only", "local":
		return StrategyLocalOnly, nil
	case "hybrid":
		return StrategyHybrid, nil
	case "dynamic":
		return StrategyDynamic, nil
	case "cloud_only", "cloud":
		return StrategyCloudOnly, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}

// Request is one completion request.
type Request struct {
	// Text is the prompt.
	Text string

	// Hint overrides complexity classification when the caller knows
	// better. Nil means classify.
	Hint *Complexity

	// Cacheable opts the request into the response cache. Never inferred.
	Cacheable bool
}

// Response is a completed request.
type Response struct {
	// Text is the completion.
	Text string

	// RequestID is the per-request correlation ID.
	RequestID string

	// Backend names the provider that produced the text. Empty on cache
	// hits and deduplicated in-flight shares.
	Backend string

	// CacheTier reports which tier answered, TierNone for a fresh
	// generation.
	CacheTier cache.Tier

	// Complexity is the class the request was routed under.
	Complexity Complexity

	// Elapsed is end-to-end latency.
	Elapsed time.Duration
}

// Cached reports whether the response came from the cache.
func (r Response) Cached() bool {
	return r.CacheTier != cache.TierNone
}

// ErrBreakerOpen marks an attempt skipped because the backend's circuit
// was open.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Attempt records one backend try inside a failed request.
type Attempt struct {
	Backend string
	Err     error
}

// TerminalError is returned when every backend the strategy allows has
// been tried or skipped. It enumerates each attempt and its last error.
type TerminalError struct {
	Attempts []Attempt
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Backend, a.Err)
	}
	return "all backends failed: " + strings.Join(parts, "; ")
}

// Config fixes the router's session-level choices.
type Config struct {
	// Strategy selects the routing behavior.
	Strategy Strategy

	// Timeout bounds each backend call. Default: DefaultTimeout.
	Timeout time.Duration

	// Runtime is the primary local runtime config.
	Runtime autoconfig.RuntimeConfig

	// Pair holds the fast/quality configs for the Dynamic strategy.
	// A zero Pair falls back to Runtime for both roles.
	Pair autoconfig.Pair
}

// Deps are the router's collaborators, built by the composition root.
type Deps struct {
	Local    backend.Provider
	Remote   backend.Provider
	Cache    *cache.Cache
	Breakers *breaker.Registry
	Metrics  *Metrics
	Logger   *logging.Logger
}

// Router routes completion requests.
type Router struct {
	config     Config
	local      backend.Provider
	remote     backend.Provider
	cache      *cache.Cache
	breakers   *breaker.Registry
	metrics    *Metrics
	classifier *classifier
	logger     *logging.Logger
	now        func() time.Time
}

// New creates a Router. The strategy dictates which providers are
// mandatory: every strategy except CloudOnly needs Local, and CloudOnly,
// Hybrid with fallback, or Dynamic remote retries need Remote.
func New(config Config, deps Deps) (*Router, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Strategy != StrategyCloudOnly && deps.Local == nil {
		return nil, fmt.Errorf("router: strategy %s requires a local backend", config.Strategy)
	}
	if config.Strategy == StrategyCloudOnly && deps.Remote == nil {
		return nil, fmt.Errorf("router: strategy %s requires a remote backend", config.Strategy)
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("router: cache is required")
	}
	if deps.Breakers == nil {
		return nil, fmt.Errorf("router: breaker registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if pairIsZero(config.Pair) {
		config.Pair = autoconfig.Pair{Fast: config.Runtime, Quality: config.Runtime}
	}

	return &Router{
		config:     config,
		local:      deps.Local,
		remote:     deps.Remote,
		cache:      deps.Cache,
		breakers:   deps.Breakers,
		metrics:    deps.Metrics,
		classifier: newClassifier(),
		logger:     deps.Logger.With("component", "router"),
		now:        time.Now,
	}, nil
}

func pairIsZero(p autoconfig.Pair) bool {
	return p.Fast.ModelID == "" && p.Quality.ModelID == ""
}

// Complete routes one request: cache first, then the strategy's backend
// chain. Identical concurrent cache misses share a single generation.
func (r *Router) Complete(ctx context.Context, req Request) (Response, error) {
	start := r.now()
	requestID := uuid.NewString()
	log := r.logger.With("request_id", requestID)

	complexity := r.complexityFor(req)
	log.Debug("routing request",
		"strategy", r.config.Strategy.String(),
		"complexity", complexity.String(),
		"cacheable", req.Cacheable,
	)

	var usedBackend string
	text, tier, err := r.cache.GetOrCompute(ctx, req.Text, req.Cacheable,
		func(ctx context.Context) (string, error) {
			out, name, err := r.dispatch(ctx, req.Text, complexity, log)
			usedBackend = name
			return out, err
		})

	elapsed := r.now().Sub(start)
	if r.metrics != nil {
		r.metrics.requestDuration.Observe(elapsed.Seconds())
		if err == nil {
			if tier != cache.TierNone {
				r.metrics.cacheHits.WithLabelValues(tier.String()).Inc()
			} else if req.Cacheable {
				r.metrics.cacheMisses.Inc()
			}
		}
	}
	if err != nil {
		return Response{RequestID: requestID, Complexity: complexity, Elapsed: elapsed}, err
	}

	if tier != cache.TierNone {
		log.Debug("cache hit", "tier", tier.String())
	}
	return Response{
		Text:       text,
		RequestID:  requestID,
		Backend:    usedBackend,
		CacheTier:  tier,
		Complexity: complexity,
		Elapsed:    elapsed,
	}, nil
}

func (r *Router) complexityFor(req Request) Complexity {
	if req.Hint != nil {
		return *req.Hint
	}
	return r.classifier.classify(req.Text)
}

// attemptSpec is one planned backend try.
type attemptSpec struct {
	provider backend.Provider
	runtime  autoconfig.RuntimeConfig
}

// plan expands the strategy into an ordered attempt list.
func (r *Router) plan(complexity Complexity) []attemptSpec {
	switch r.config.Strategy {
	case StrategyLocalOnly:
		return []attemptSpec{{r.local, r.config.Runtime}}

	case StrategyCloudOnly:
		return []attemptSpec{{r.remote, r.config.Runtime}}

	case StrategyHybrid:
		plan := []attemptSpec{{r.local, r.config.Runtime}}
		if r.remote != nil {
			plan = append(plan, attemptSpec{r.remote, r.config.Runtime})
		}
		return plan

	case StrategyDynamic:
		if complexity == ComplexityComplex {
			plan := []attemptSpec{{r.local, r.config.Pair.Quality}}
			if r.remote != nil {
				plan = append(plan, attemptSpec{r.remote, r.config.Pair.Quality})
			}
			return plan
		}
		return []attemptSpec{{r.local, r.config.Pair.Fast}}

	default:
		return nil
	}
}

// dispatch walks the attempt chain until a backend succeeds. The second
// return value names the successful backend.
func (r *Router) dispatch(ctx context.Context, prompt string, complexity Complexity,
	log *logging.Logger) (string, string, error) {

	var attempts []Attempt
	for _, spec := range r.plan(complexity) {
		name := spec.provider.Name()
		br := r.breakers.Get(name)

		if !br.Allow() {
			log.Warn("backend skipped, circuit open", "backend", name)
			attempts = append(attempts, Attempt{Backend: name, Err: ErrBreakerOpen})
			continue
		}

		if r.metrics != nil {
			r.metrics.backendAttempts.WithLabelValues(name).Inc()
		}
		text, err := r.invoke(ctx, spec, br, prompt)
		if err == nil {
			log.Info("request served", "backend", name, "model", spec.runtime.ModelID)
			return text, name, nil
		}

		if r.metrics != nil {
			r.metrics.backendFailures.WithLabelValues(name, backend.KindOf(err).String()).Inc()
		}
		log.Warn("backend attempt failed", "backend", name, "error", err)
		attempts = append(attempts, Attempt{Backend: name, Err: err})

		// The caller is gone; fallbacks would waste a backend call.
		if ctx.Err() != nil {
			return "", "", &backend.Error{Kind: backend.KindCancelled, Backend: name, Err: ctx.Err()}
		}
	}

	return "", "", &TerminalError{Attempts: attempts}
}

// invoke runs one backend call under the per-call timeout. The breaker
// outcome is recorded by the goroutine that owns the call, so a result
// that arrives after the router stopped waiting still counts.
func (r *Router) invoke(ctx context.Context, spec attemptSpec, br *breaker.Breaker, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	type callResult struct {
		text string
		err  error
	}
	done := make(chan callResult, 1)
	go func() {
		text, err := spec.provider.Generate(callCtx, prompt, spec.runtime)
		if err == nil {
			br.RecordSuccess()
		} else {
			br.RecordFailure()
		}
		done <- callResult{text, err}
	}()

	select {
	case res := <-done:
		return res.text, res.err

	case <-callCtx.Done():
		// Give a context-aware backend a moment to unwind, then stop
		// waiting on it entirely.
		select {
		case res := <-done:
			return res.text, res.err
		case <-time.After(drainGrace):
			br.RecordFailure()
			kind := backend.KindTimeout
			if ctx.Err() == context.Canceled {
				kind = backend.KindCancelled
			}
			return "", &backend.Error{
				Kind:    kind,
				Backend: spec.provider.Name(),
				Err:     callCtx.Err(),
			}
		}
	}
}

// Status is the router's introspection snapshot.
type Status struct {
	Strategy string                   `json:"strategy"`
	Runtime  autoconfig.RuntimeConfig `json:"runtime"`
	Pair     autoconfig.Pair          `json:"pair"`
	Breakers map[string]BreakerStatus `json:"breakers"`
	Cache    cache.Stats              `json:"cache"`
}

// BreakerStatus is one backend's breaker state for the status surface.
type BreakerStatus struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

// Status reports the current configs, breaker states, and cache stats.
func (r *Router) Status() Status {
	breakers := make(map[string]BreakerStatus)
	for name, stats := range r.breakers.Snapshot() {
		breakers[name] = BreakerStatus{
			State:               stats.State.String(),
			ConsecutiveFailures: stats.ConsecutiveFailures,
			LastFailure:         stats.LastFailureTime,
		}
	}
	return Status{
		Strategy: r.config.Strategy.String(),
		Runtime:  r.config.Runtime,
		Pair:     r.config.Pair,
		Breakers: breakers,
		Cache:    r.cache.Stats(),
	}
}
