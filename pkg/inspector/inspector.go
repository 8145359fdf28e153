package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/randalmurphal/inspector/pkg/inspector/cache"
	"github.com/randalmurphal/inspector/pkg/inspector/config"
	"github.com/randalmurphal/inspector/pkg/inspector/ecies"
	"github.com/randalmurphal/inspector/pkg/inspector/fetch"
	"github.com/randalmurphal/inspector/pkg/inspector/observability"
	"github.com/randalmurphal/inspector/pkg/inspector/spec"
	"github.com/randalmurphal/inspector/pkg/inspector/storage"
	"github.com/randalmurphal/inspector/pkg/inspector/validate"
)

// BranchKey is the storage key holding the active schema branch id.
const BranchKey = "inspector.branch_id"

// Inspector fetches, caches and applies event specs for one stream.
// It is safe for concurrent use.
type Inspector struct {
	apiKey   string
	streamID string

	fetcher   fetch.Fetcher
	store     storage.Store
	cache     *cache.SpecCache
	validator *validate.Validator
	publicKey string

	fetchTimeout time.Duration

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	group singleflight.Group

	branchMu     sync.Mutex
	branchID     string
	branchLoaded bool
	// branchGen counts changes of branchID, including Reset.
	branchGen uint64
}

// New creates an Inspector for apiKey and streamID.
func New(apiKey, streamID string, opts ...Option) (*Inspector, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	o := options{
		logger:   slog.Default(),
		settings: config.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	insp := &Inspector{
		apiKey:   apiKey,
		streamID: streamID,
		fetcher:  o.fetcher,
		store:    o.store,
		logger:   o.logger,
		metrics:  o.metrics,
		spans:    o.spans,

		fetchTimeout: o.settings.FetchTimeout,
	}
	if insp.fetcher == nil {
		insp.fetcher = fetch.Unavailable{}
	}
	if insp.spans == nil {
		insp.spans = observability.NoopSpanManager{}
	}
	if insp.metrics == nil {
		m, err := metricsFor(o.settings.Metrics)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		insp.metrics = m
	}

	insp.publicKey = o.settings.PublicKey
	if o.publicKey != nil {
		insp.publicKey = *o.publicKey
	}

	insp.cache = o.cache
	if insp.cache == nil {
		insp.cache = cache.New(
			cache.WithTTL(o.settings.CacheTTL),
			cache.WithCapacity(o.settings.CacheCapacity),
			cache.WithMetrics(insp.metrics),
			cache.WithLogger(insp.logger),
		)
	}

	insp.validator = o.validator
	if insp.validator == nil {
		insp.validator = validate.New(
			validate.WithRegexTimeout(o.settings.RegexTimeout),
			validate.WithLogger(insp.logger),
			validate.WithMetrics(insp.metrics),
			validate.WithSpanManager(insp.spans),
		)
	}

	if insp.store == nil {
		s, err := storage.Open(o.settings.StorageDriver, o.settings.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		insp.store = s
	}

	return insp, nil
}

// metricsFor builds the recorder named by a settings metrics value.
func metricsFor(backend string) (observability.MetricsRecorder, error) {
	switch backend {
	case config.MetricsOTel:
		return observability.NewMetricsRecorder(), nil
	case config.MetricsPrometheus:
		pm, err := observability.DefaultPrometheusMetrics()
		if err != nil {
			return nil, fmt.Errorf("register prometheus metrics: %w", err)
		}
		return pm, nil
	default:
		return observability.NoopMetrics{}, nil
	}
}

// EventSpec returns the spec for eventName. The bool is false when the
// service has no spec for the event or the fetch failed.
func (i *Inspector) EventSpec(ctx context.Context, eventName string) (*spec.Response, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	key := cache.Key(i.apiKey, i.streamID, eventName)
	if resp, ok := i.cache.Get(key); ok {
		return resp, resp != nil
	}

	// The shared fetch is detached from any one caller's cancellation so a
	// caller giving up does not fail the others. It is bounded by the fetch
	// timeout instead.
	ch := i.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.fetchTimeout)
		defer cancel()
		return i.fetch(fctx, key, eventName)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, false
		}
		resp, _ := r.Val.(*spec.Response)
		return resp, resp != nil
	case <-ctx.Done():
		return nil, false
	}
}

// fetch performs one fetch and caches its result.
func (i *Inspector) fetch(ctx context.Context, key, eventName string) (*spec.Response, error) {
	requestID := uuid.NewString()
	logger := observability.EnrichLogger(i.logger, i.streamID, eventName)

	ctx, span := i.spans.StartFetchSpan(ctx, eventName, requestID)
	elapsed := observability.TimedOperation()
	start := time.Now()
	gen := i.branchGeneration()

	future := i.fetcher.FetchEventSpec(ctx, fetch.Params{
		APIKey:    i.apiKey,
		StreamID:  i.streamID,
		EventName: eventName,
	})
	resp, err := future.Wait(ctx)
	if err != nil {
		observability.LogSpecFetchError(logger, eventName, requestID, err)
		i.metrics.RecordSpecFetch(ctx, observability.FetchError, time.Since(start))
		i.spans.EndSpanWithError(span, err)
		return nil, err
	}

	if resp != nil && resp.Empty() {
		resp = nil
	}
	if active, ok := i.admit(key, resp, gen); !ok {
		observability.LogStaleSpec(logger, eventName, requestID, resp.BranchID(), active)
	}

	outcome := observability.FetchNotFound
	if resp != nil {
		outcome = observability.FetchFound
	}
	observability.LogSpecFetch(logger, eventName, requestID, resp != nil, elapsed())
	i.metrics.RecordSpecFetch(ctx, outcome, time.Since(start))
	i.spans.EndSpanWithError(span, nil, observability.AttrSpecFound.Bool(resp != nil))
	return resp, nil
}

// branchGeneration returns the current branch generation, loading the
// stored branch first so that loading it does not count as a change.
func (i *Inspector) branchGeneration() uint64 {
	i.branchMu.Lock()
	defer i.branchMu.Unlock()
	i.activeBranchLocked()
	return i.branchGen
}

// admit caches resp under key. A response from a new branch becomes the
// active branch and clears the cache first. If the branch moved since gen
// was taken, a response that does not match the now active branch is not
// cached and the branch is left alone; ok is false and active names the
// active branch.
func (i *Inspector) admit(key string, resp *spec.Response, gen uint64) (active string, ok bool) {
	i.branchMu.Lock()
	defer i.branchMu.Unlock()

	current := i.activeBranchLocked()
	branch := resp.BranchID()
	if i.branchGen != gen && (branch == "" || branch != current) {
		return current, false
	}

	if branch != "" && branch != current {
		if current != "" {
			observability.LogBranchChange(i.logger, current, branch)
			i.cache.Clear()
		}
		i.branchID = branch
		i.branchGen++
		if i.store.IsInitialized() {
			if err := i.store.SetItem(BranchKey, branch); err != nil {
				observability.LogStorageError(i.logger, "set", err)
			}
		}
	}
	i.cache.Set(key, resp)
	return i.branchID, true
}

// activeBranchLocked returns the active branch, reading storage on first
// use. Must hold i.branchMu.
func (i *Inspector) activeBranchLocked() string {
	if i.branchLoaded || !i.store.IsInitialized() {
		return i.branchID
	}

	stored, err := i.store.GetItem(BranchKey)
	switch {
	case err == nil:
		i.branchID = stored
		i.branchLoaded = true
	case errors.Is(err, storage.ErrNotFound):
		i.branchLoaded = true
	default:
		observability.LogStorageError(i.logger, "get", err)
	}
	return i.branchID
}

// BranchID returns the active schema branch, or "" if none is known yet.
func (i *Inspector) BranchID() string {
	i.branchMu.Lock()
	defer i.branchMu.Unlock()
	return i.activeBranchLocked()
}

// Reset drops every cached spec and forgets the active branch, including
// the copy in storage. The next fetched spec becomes the active branch.
func (i *Inspector) Reset() error {
	i.branchMu.Lock()
	defer i.branchMu.Unlock()

	i.cache.Clear()
	i.branchID = ""
	i.branchLoaded = true
	i.branchGen++
	if !i.store.IsInitialized() {
		return nil
	}
	if err := i.store.RemoveItem(BranchKey); err != nil {
		observability.LogStorageError(i.logger, "remove", err)
		return fmt.Errorf("reset branch: %w", err)
	}
	return nil
}

// Validate validates props against the spec for eventName. It returns nil
// when no spec is available.
func (i *Inspector) Validate(ctx context.Context, eventName string, props map[string]any) *validate.Result {
	resp, ok := i.EventSpec(ctx, eventName)
	if !ok {
		return nil
	}
	return i.validator.ValidateEvent(ctx, props, resp)
}

// EncryptValues encrypts the JSON form of each named property present in
// props and returns base64 ciphertexts by name. Properties that fail to
// encrypt are left out. It returns nil when no public key is configured.
func (i *Inspector) EncryptValues(props map[string]any, names ...string) map[string]string {
	if i.publicKey == "" {
		return nil
	}

	ctx := context.Background()
	out := make(map[string]string, len(names))
	for _, name := range names {
		value, ok := props[name]
		if !ok {
			continue
		}

		plaintext, err := json.Marshal(value)
		if err == nil {
			var encoded string
			encoded, err = ecies.Encrypt(string(plaintext), i.publicKey)
			if err == nil {
				out[name] = encoded
			}
		}
		if err != nil {
			observability.LogEncryptionError(i.logger, name, err)
		}
		i.metrics.RecordEncryption(ctx, err == nil)
	}
	return out
}

// CacheStats returns a snapshot of the spec cache counters.
func (i *Inspector) CacheStats() cache.Stats {
	return i.cache.Stats()
}

// Close releases the storage.
func (i *Inspector) Close() error {
	return i.store.Close()
}
