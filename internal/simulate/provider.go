// Package simulate provides an in-process operation provider standing in for
// a remote CRUD API.
//
// The provider keeps an in-memory record store, injects configurable latency
// and failures, and can report synthetic quota feedback after each call,
// mirroring a server that returns rate-limit headers. It backs the CLI's
// default execution mode and the integration tests; production callers
// supply their own operation set instead.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/bulkhead/internal/engine/quota"
	"github.com/rshade/bulkhead/internal/engine/work"
)

// Simulated failure errors.
var (
	ErrSimulatedFailure = errors.New("simulated failure")
	ErrRecordNotFound   = errors.New("record not found")
)

// Config is the simulation scenario, usually embedded in a work manifest.
type Config struct {
	// LatencyMs is the artificial per-call latency in milliseconds.
	LatencyMs int `yaml:"latency_ms"`

	// FailKeys lists keys whose operations always fail.
	FailKeys []string `yaml:"fail_keys,omitempty"`

	// FlakyKeys maps keys to the number of times their operations fail
	// before succeeding. Exercises the retry path.
	FlakyKeys map[string]int `yaml:"flaky_keys,omitempty"`

	// Feedback, when true, reports synthetic quota feedback to the tracker
	// after every call, as a real server would via rate-limit headers.
	Feedback bool `yaml:"feedback"`

	// FeedbackLimit is the window limit the simulated server reports.
	// Defaults to the tracker's own limit when zero.
	FeedbackLimit int `yaml:"feedback_limit"`
}

// Provider is a simulated remote API. Safe for concurrent use.
type Provider struct {
	cfg     Config
	tracker *quota.Tracker
	logger  zerolog.Logger

	mu        sync.Mutex
	store     map[string]map[string]any
	failures  map[string]int
	calls     map[work.Kind]int
	remaining int
}

// Option customizes a Provider.
type Option func(*Provider)

// WithLogger attaches a logger to the provider.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithTracker attaches the quota tracker that receives synthetic feedback
// when the scenario enables it.
func WithTracker(tracker *quota.Tracker) Option {
	return func(p *Provider) { p.tracker = tracker }
}

// New creates a provider for the given scenario. A nil cfg runs with zero
// latency and no failures.
func New(cfg *Config, opts ...Option) *Provider {
	var c Config
	if cfg != nil {
		c = *cfg
	}

	p := &Provider{
		cfg:      c,
		logger:   zerolog.Nop(),
		store:    make(map[string]map[string]any),
		failures: make(map[string]int),
		calls:    make(map[work.Kind]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.cfg.FeedbackLimit == 0 && p.tracker != nil {
		p.cfg.FeedbackLimit = p.tracker.Snapshot().Limit
	}
	p.remaining = p.cfg.FeedbackLimit

	return p
}

// Operations returns the provider's operation set for all four kinds.
func (p *Provider) Operations() work.OperationSet {
	return work.OperationSet{
		work.KindCreate: p.create,
		work.KindRead:   p.read,
		work.KindUpdate: p.update,
		work.KindDelete: p.delete,
	}
}

// Calls returns how many times operations of the given kind were invoked.
func (p *Provider) Calls(kind work.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[kind]
}

// TotalCalls returns the total operation invocation count.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func (p *Provider) create(ctx context.Context, item work.Item) (any, error) {
	if err := p.begin(ctx, item); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	payload := item.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	p.store[item.Key] = payload

	return map[string]any{"key": item.Key, "created": true}, nil
}

func (p *Provider) read(ctx context.Context, item work.Item) (any, error) {
	if err := p.begin(ctx, item); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if record, ok := p.store[item.Key]; ok {
		return record, nil
	}

	// Unseeded keys read back as synthetic records rather than 404s so that
	// read-only manifests work against an empty store.
	return map[string]any{"key": item.Key}, nil
}

func (p *Provider) update(ctx context.Context, item work.Item) (any, error) {
	if err := p.begin(ctx, item); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	record, ok := p.store[item.Key]
	if !ok {
		record = map[string]any{}
		p.store[item.Key] = record
	}
	for k, v := range item.Payload {
		record[k] = v
	}

	return map[string]any{"key": item.Key, "updated": true}, nil
}

func (p *Provider) delete(ctx context.Context, item work.Item) (any, error) {
	if err := p.begin(ctx, item); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.store, item.Key)

	return map[string]any{"key": item.Key, "deleted": true}, nil
}

// begin applies latency, records the call, reports feedback, and injects the
// scenario's failures.
func (p *Provider) begin(ctx context.Context, item work.Item) error {
	if p.cfg.LatencyMs > 0 {
		timer := time.NewTimer(time.Duration(p.cfg.LatencyMs) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.calls[item.Kind]++
	feedback := p.cfg.Feedback && p.tracker != nil
	var remaining int
	if feedback {
		if p.remaining > 0 {
			p.remaining--
		}
		remaining = p.remaining
	}
	p.mu.Unlock()

	if feedback {
		p.tracker.ApplyFeedback(quota.Feedback{
			Remaining: remaining,
			Limit:     p.cfg.FeedbackLimit,
		})
	}

	if p.shouldFail(item.Key) {
		return fmt.Errorf("%w: %s %s", ErrSimulatedFailure, item.Kind, item.Key)
	}

	return nil
}

// shouldFail consults the scenario's failure lists, consuming one flaky
// failure when available.
func (p *Provider) shouldFail(key string) bool {
	for _, failKey := range p.cfg.FailKeys {
		if failKey == key {
			return true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	budget, ok := p.cfg.FlakyKeys[key]
	if !ok {
		return false
	}
	if p.failures[key] >= budget {
		return false
	}
	p.failures[key]++
	return true
}
