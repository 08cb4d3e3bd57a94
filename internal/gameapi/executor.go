package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matchstorm/matchstorm/internal/backoff"
	"github.com/matchstorm/matchstorm/internal/metrics"
	"github.com/matchstorm/matchstorm/internal/tracing"
)

const (
	maxBodyReadSize    = 1024 * 1024
	maxLoggedBodyBytes = 1024

	defaultRetryAfter = 60 * time.Second
	rateLimitJitter   = 5 * time.Second

	transportBackoffMin = 2 * time.Second
	transportBackoffMax = 5 * time.Second
)

// Response is the parsed result of a successful call. A body that is not
// valid JSON is kept as raw text for diagnostics; it is not a call failure.
type Response struct {
	Status int
	Body   []byte
}

// JSON returns the body as a gjson document. Invalid JSON yields a result
// whose lookups all miss, which callers requiring fields treat as malformed.
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// ExecutorOptions configure the shared request executor.
type ExecutorOptions struct {
	BaseURL   string
	Client    *http.Client
	Tracker   *backoff.Tracker
	Collector *metrics.Collector
	Tracer    trace.Tracer
	Log       *zap.SugaredLogger

	// PacingMin/PacingMax bound the randomized delay applied before every
	// call. Zero/zero disables pacing (tests).
	PacingMin time.Duration
	PacingMax time.Duration

	// RatePerSecond caps outbound calls globally. 0 means unlimited.
	RatePerSecond int

	Rand *rand.Rand // injectable randomness; defaults to a time-seeded source

	// Sleep is injectable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor issues a single backend call with per-endpoint cooldown
// consultation, randomized pacing, and outcome classification. It is shared
// by every concurrently running match.
type Executor struct {
	base      string
	client    *http.Client
	tracker   *backoff.Tracker
	collector *metrics.Collector
	tracer    trace.Tracer
	log       *zap.SugaredLogger
	limiter   *rate.Limiter
	pacingMin time.Duration
	pacingMax time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewExecutor(opt ExecutorOptions) *Executor {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opt.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opt.RatePerSecond), opt.RatePerSecond)
	}
	rnd := opt.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sleep := opt.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	client := opt.Client
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	log := opt.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{
		base:      opt.BaseURL,
		client:    client,
		tracker:   opt.Tracker,
		collector: opt.Collector,
		tracer:    opt.Tracer,
		log:       log,
		limiter:   limiter,
		pacingMin: opt.PacingMin,
		pacingMax: opt.PacingMax,
		sleep:     sleep,
		rnd:       rnd,
	}
}

// Do executes one call. op names the logical operation for metrics and logs;
// payload is JSON-encoded when non-nil. Failures return *Error tagged with
// the outcome kind.
func (e *Executor) Do(ctx context.Context, op, method, path string, payload any) (*Response, error) {
	key := backoff.Key(method, path)

	// Per-endpoint backpressure: wait out any active cooldown before calling.
	if e.tracker != nil {
		if wait := e.tracker.ShouldWait(key); wait > 0 {
			e.log.Debugw("waiting out endpoint cooldown", "op", op, "key", key, "wait", wait)
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	// Small randomized delay so traffic does not look robotic.
	if pause := e.pacingDelay(); pause > 0 {
		if err := e.sleep(ctx, pause); err != nil {
			return nil, err
		}
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode payload: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, op, key)
	tracing.InjectHTTPHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := e.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		// Transport failure: short randomized cooldown so concurrent matches
		// back off the endpoint before retrying it.
		cooldown := e.durationBetween(transportBackoffMin, transportBackoffMax)
		if e.tracker != nil {
			e.tracker.RecordBackoff(key, cooldown)
		}
		outcome := &Error{Kind: KindTransport, Op: op, Err: err}
		e.record(op, latency, outcome)
		tracing.EndSpan(span, outcome)
		e.log.Warnw("transport failure", "op", op, "key", key, "cooldown", cooldown, "error", err)
		return nil, outcome
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	if readErr != nil {
		raw = nil
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := e.retryAfter(resp, raw)
		if e.tracker != nil {
			e.tracker.RecordBackoff(key, retryAfter)
		}
		outcome := &Error{Kind: KindRateLimited, Op: op, Status: resp.StatusCode, RetryAfter: retryAfter}
		e.record(op, latency, outcome)
		tracing.EndSpan(span, outcome, attribute.Int("http.status_code", resp.StatusCode))
		e.log.Infow("rate limited", "op", op, "key", key, "retry_after", retryAfter)
		return nil, outcome

	case resp.StatusCode >= 400:
		outcome := &Error{Kind: KindUnexpectedStatus, Op: op, Status: resp.StatusCode, Body: snippet(raw)}
		e.record(op, latency, outcome)
		tracing.EndSpan(span, outcome, attribute.Int("http.status_code", resp.StatusCode))
		e.log.Warnw("unexpected status", "op", op, "key", key, "status", resp.StatusCode, "body", snippet(raw))
		return nil, outcome
	}

	e.record(op, latency, nil)
	tracing.EndSpan(span, nil, attribute.Int("http.status_code", resp.StatusCode))
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

// retryAfter extracts the server-suggested cooldown from the Retry-After
// header or a retry_after body field, defaulting to 60s, plus 0-5s of jitter
// so concurrent matches do not retry in lockstep.
func (e *Executor) retryAfter(resp *http.Response, body []byte) time.Duration {
	suggested := defaultRetryAfter
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			suggested = time.Duration(secs) * time.Second
		}
	} else if field := gjson.GetBytes(body, "retry_after"); field.Exists() {
		if secs := field.Int(); secs > 0 {
			suggested = time.Duration(secs) * time.Second
		}
	}
	return suggested + e.durationBetween(0, rateLimitJitter)
}

func (e *Executor) pacingDelay() time.Duration {
	if e.pacingMax <= 0 {
		return 0
	}
	return e.durationBetween(e.pacingMin, e.pacingMax)
}

func (e *Executor) durationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return min + time.Duration(e.rnd.Int63n(int64(max-min)))
}

func (e *Executor) record(op string, latency time.Duration, outcome *Error) {
	if e.collector == nil {
		return
	}
	kind := ""
	if outcome != nil {
		kind = string(outcome.Kind)
	}
	e.collector.RecordCall(op, latency, kind)
}

func snippet(body []byte) string {
	if len(body) > maxLoggedBodyBytes {
		body = body[:maxLoggedBodyBytes]
	}
	return string(body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
