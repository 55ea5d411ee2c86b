package cache

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const keyPrefix = "integrity"

const (
	DefaultTimingTTL         = 6 * time.Hour
	DefaultActiveTTL         = 6 * time.Hour
	DefaultMaxTimings        = 500
	DefaultMaxActiveAttempts = 200

	lockStripes = 64
)

// AttemptRef identifies an attempt that recently produced an answer.
type AttemptRef struct {
	AttemptID     string `json:"attempt_id"`
	ParticipantID string `json:"participant_id"`
}

type StateConfig struct {
	TimingTTL         time.Duration
	ActiveTTL         time.Duration
	MaxTimings        int
	MaxActiveAttempts int
}

// EphemeralState is the typed view over a KeyValueCache used by the
// detectors. Its methods never fail: a cache error degrades to the empty
// result and a warning. Read-modify-write updates of one key are serialized
// within the process; replicas sharing redis can still interleave them.
type EphemeralState struct {
	cache  KeyValueCache
	logger zerolog.Logger
	config StateConfig
	locks  [lockStripes]sync.Mutex
}

func NewEphemeralState(cache KeyValueCache, logger zerolog.Logger, config StateConfig) *EphemeralState {
	if config.TimingTTL <= 0 {
		config.TimingTTL = DefaultTimingTTL
	}
	if config.ActiveTTL <= 0 {
		config.ActiveTTL = DefaultActiveTTL
	}
	if config.MaxTimings <= 0 {
		config.MaxTimings = DefaultMaxTimings
	}
	if config.MaxActiveAttempts <= 0 {
		config.MaxActiveAttempts = DefaultMaxActiveAttempts
	}
	return &EphemeralState{
		cache:  cache,
		logger: logger.With().Str("component", "ephemeral_state").Logger(),
		config: config,
	}
}

func (s *EphemeralState) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Key builds a namespaced cache key from its parts.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// AppendTiming records ts in the attempt's ordered timestamp series and
// returns the updated series.
func (s *EphemeralState) AppendTiming(ctx context.Context, attemptID string, ts time.Time) []time.Time {
	defer s.lock(Key("timing", attemptID))()

	series := s.Timings(ctx, attemptID)

	ms := ts.UTC().UnixMilli()
	idx := sort.Search(len(series), func(i int) bool { return series[i].UnixMilli() >= ms })
	if idx == len(series) || series[idx].UnixMilli() != ms {
		series = append(series, time.Time{})
		copy(series[idx+1:], series[idx:])
		series[idx] = time.UnixMilli(ms).UTC()
	}
	if len(series) > s.config.MaxTimings {
		series = series[len(series)-s.config.MaxTimings:]
	}

	raw := make([]int64, len(series))
	for i, t := range series {
		raw[i] = t.UnixMilli()
	}
	s.setJSON(ctx, Key("timing", attemptID), raw, s.config.TimingTTL)

	return series
}

func (s *EphemeralState) Timings(ctx context.Context, attemptID string) []time.Time {
	var raw []int64
	if !s.getJSON(ctx, Key("timing", attemptID), &raw) {
		return nil
	}

	series := make([]time.Time, len(raw))
	for i, ms := range raw {
		series[i] = time.UnixMilli(ms).UTC()
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Before(series[j]) })
	return series
}

// TrackAttempt adds ref to the assessment's active attempt list and returns
// the list. The oldest attempts are dropped past MaxActiveAttempts.
func (s *EphemeralState) TrackAttempt(ctx context.Context, assessmentID string, ref AttemptRef) []AttemptRef {
	defer s.lock(Key("active", assessmentID))()

	active := s.ActiveAttempts(ctx, assessmentID)
	for _, a := range active {
		if a.AttemptID == ref.AttemptID {
			return active
		}
	}

	active = append(active, ref)
	if len(active) > s.config.MaxActiveAttempts {
		active = active[len(active)-s.config.MaxActiveAttempts:]
	}
	s.setJSON(ctx, Key("active", assessmentID), active, s.config.ActiveTTL)
	return active
}

func (s *EphemeralState) ActiveAttempts(ctx context.Context, assessmentID string) []AttemptRef {
	var active []AttemptRef
	if !s.getJSON(ctx, Key("active", assessmentID), &active) {
		return nil
	}
	return active
}

// IncrementCounter bumps a rolling counter. A failed increment counts as the
// first occurrence.
func (s *EphemeralState) IncrementCounter(ctx context.Context, key string, ttl time.Duration) int64 {
	n, err := s.cache.Increment(ctx, key, ttl)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to increment ephemeral counter")
		return 1
	}
	return n
}

// FirstEmission reports whether key was not seen within ttl of its first
// emission. Repeats inside the window do not extend it. When the cache is
// unavailable it reports true so signals are duplicated rather than lost.
func (s *EphemeralState) FirstEmission(ctx context.Context, key string, ttl time.Duration) bool {
	first, err := s.cache.SetIfAbsent(ctx, key, []byte("1"), ttl)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to record signal emission")
		return true
	}
	return first
}

func (s *EphemeralState) getJSON(ctx context.Context, key string, dst interface{}) bool {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read ephemeral state")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding corrupt ephemeral state")
		return false
	}
	return true
}

func (s *EphemeralState) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode ephemeral state")
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write ephemeral state")
	}
}
