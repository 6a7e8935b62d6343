package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// Resolution is the outcome of one fallback cascade.
type Resolution struct {
	Payload  entity.RawPayload
	Source   string
	Attempts []entity.FetchAttempt
	// Exhausted is true when no candidate produced an answer and Payload is the
	// operation's empty default.
	Exhausted bool
	// Candidates is how many sources were configured for the operation.
	Candidates int
}

// FallbackOrchestrator tries source adapters in declared order until one answers.
// Order is static: there is no circuit breaker and past failures never reorder candidates.
type FallbackOrchestrator struct {
	network        entity.NetworkID
	attemptTimeout time.Duration
	recorder       port.AttemptRecorder
	logger         port.Logger
}

// NewFallbackOrchestrator creates an orchestrator for one network.
func NewFallbackOrchestrator(network entity.NetworkID, attemptTimeout time.Duration, recorder port.AttemptRecorder, logger port.Logger) *FallbackOrchestrator {
	return &FallbackOrchestrator{
		network:        network,
		attemptTimeout: attemptTimeout,
		recorder:       recorder,
		logger:         logger,
	}
}

type fetchResult struct {
	payload entity.RawPayload
	err     error
}

// Resolve runs the cascade for op. It never returns an error: when every candidate
// fails the operation's empty payload is returned with Exhausted set.
func (o *FallbackOrchestrator) Resolve(ctx context.Context, op entity.Operation, params entity.FetchParams, candidates []port.SourceAdapter) Resolution {
	var (
		res       = Resolution{Candidates: len(candidates)}
		fallback  *entity.RawPayload
		fromEmpty string
	)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			o.logger.Debug("Cascade stopped, caller context done", "network", o.network, "operation", op, "error", ctx.Err())
			break
		}
		last := i == len(candidates)-1

		payload, attempt := o.attempt(ctx, candidate, op, params)

		if attempt.Outcome == entity.OutcomeSuccess && payload.IsEmpty() && op.ExpectsItems() && !last {
			attempt.Outcome = entity.OutcomeEmpty
			if fallback == nil {
				p := payload
				fallback, fromEmpty = &p, candidate.Name()
			}
		}
		res.Attempts = append(res.Attempts, attempt)
		if o.recorder != nil {
			o.recorder.RecordAttempt(attempt)
		}

		if attempt.Outcome == entity.OutcomeSuccess {
			res.Payload = payload
			res.Source = candidate.Name()
			return res
		}
	}

	if fallback != nil {
		// An earlier candidate legitimately answered "no items" and nothing better came along.
		res.Payload = *fallback
		res.Source = fromEmpty
		return res
	}

	if len(candidates) > 0 {
		o.logger.Warn("All sources failed", "network", o.network, "operation", op, "candidates", len(candidates))
	}
	res.Payload = entity.EmptyPayload(op)
	res.Exhausted = len(candidates) > 0
	return res
}

func (o *FallbackOrchestrator) attempt(ctx context.Context, candidate port.SourceAdapter, op entity.Operation, params entity.FetchParams) (entity.RawPayload, entity.FetchAttempt) {
	attempt := entity.FetchAttempt{
		Network:   o.network,
		Operation: op,
		Source:    candidate.Name(),
		StartedAt: time.Now(),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%w: %s panicked: %v", entity.ErrDecode, candidate.Name(), r)}
			}
		}()
		p, err := candidate.Fetch(attemptCtx, op, params)
		done <- fetchResult{payload: p, err: err}
	}()

	var r fetchResult
	select {
	case r = <-done:
	case <-attemptCtx.Done():
		r.err = fmt.Errorf("%w: %s did not answer %s within %s", entity.ErrUpstreamTimeout, candidate.Name(), op, o.attemptTimeout)
	}
	attempt.Latency = time.Since(attempt.StartedAt)
	r.payload.Operation = op

	if r.err == nil && r.payload.IsEmpty() && !op.ExpectsItems() {
		r.err = fmt.Errorf("%w: %s returned no %s", entity.ErrDecode, candidate.Name(), op)
	}

	switch {
	case r.err == nil:
		attempt.Outcome = entity.OutcomeSuccess
		if r.payload.Source == "" {
			r.payload.Source = candidate.Name()
		}
		o.logger.Debug("Source answered", "network", o.network, "operation", op, "source", candidate.Name(), "latency", attempt.Latency)
	case errors.Is(r.err, entity.ErrUpstreamTimeout) || errors.Is(r.err, context.DeadlineExceeded):
		attempt.Outcome = entity.OutcomeTimeout
		attempt.Error = r.err.Error()
		o.logger.Warn("Source timed out", "network", o.network, "operation", op, "source", candidate.Name(), "latency", attempt.Latency)
	default:
		attempt.Outcome = entity.OutcomeError
		attempt.Error = r.err.Error()
		o.logger.Warn("Source failed", "network", o.network, "operation", op, "source", candidate.Name(), "error", r.err)
	}
	return r.payload, attempt
}

// allExhausted reports whether every resolution that had candidates ran out of them,
// and at least one had candidates.
func allExhausted(resolutions ...Resolution) bool {
	tried := false
	for _, r := range resolutions {
		if r.Candidates == 0 {
			continue
		}
		tried = true
		if !r.Exhausted {
			return false
		}
	}
	return tried
}
