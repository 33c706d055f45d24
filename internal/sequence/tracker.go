package sequence

import (
	"math"
	"sort"
	"sync"

	"cryptobridge/models"
)

// Outcome classifies one observed sequence number.
type Outcome int

const (
	// First is the first number seen on a stream.
	First Outcome = iota
	// InOrder is exactly the expected next number.
	InOrder
	// Gap skipped ahead; the skipped numbers are now tracked as missing.
	Gap
	// LateFill is a previously missing number arriving late.
	LateFill
	// Anomaly is a duplicate or out-of-order number that was never missing.
	Anomaly
)

func (o Outcome) String() string {
	switch o {
	case First:
		return "first"
	case InOrder:
		return "in_order"
	case Gap:
		return "gap"
	case LateFill:
		return "late_fill"
	default:
		return "anomaly"
	}
}

// Observation is the result of feeding one number to the tracker.
type Observation struct {
	Outcome  Outcome
	Expected int64 // expected number before this observation
	Missing  int   // numbers skipped by this gap (Gap only)
	// Untracked counts numbers dropped from the missing set because the
	// per-stream limit was reached, whether skipped now or evicted.
	Untracked int64
}

// AnomalyRecord describes a duplicate or out-of-order delivery.
type AnomalyRecord struct {
	Instrument models.Instrument
	Sequence   int64
	Expected   int64
}

type stream struct {
	expected  int64
	missing   map[int64]struct{}
	untracked int64
}

// Tracker detects gaps and out-of-order delivery per instrument stream. It is
// observational only: it never drops or reorders events. The mutex only
// guards against concurrent diagnostic reads; observations come from a single
// receive loop.
type Tracker struct {
	mu         sync.RWMutex
	streams    map[models.Instrument]*stream
	anomalies  []AnomalyRecord
	anomalyCnt int64
	maxRecords int
	maxMissing int
}

const (
	// DefaultMaxAnomalyRecords bounds the retained anomaly history.
	DefaultMaxAnomalyRecords = 256
	// DefaultMaxMissing bounds the missing set of each stream.
	DefaultMaxMissing = 10000
)

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithMaxMissing caps the missing set per stream. When a gap would exceed it
// the oldest missing numbers are dropped and counted as untracked.
func WithMaxMissing(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxMissing = n
		}
	}
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		streams:    make(map[models.Instrument]*stream),
		maxRecords: DefaultMaxAnomalyRecords,
		maxMissing: DefaultMaxMissing,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records seq for the instrument's stream.
func (t *Tracker) Observe(inst models.Instrument, seq int64) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streams[inst]

	// Negative numbers and MaxInt64 have no valid successor.
	if seq < 0 || seq == math.MaxInt64 {
		obs := Observation{Outcome: Anomaly, Expected: seq}
		if ok {
			obs.Expected = s.expected
		}
		t.recordAnomaly(AnomalyRecord{Instrument: inst, Sequence: seq, Expected: obs.Expected})
		return obs
	}

	if !ok {
		t.streams[inst] = &stream{expected: seq + 1, missing: make(map[int64]struct{})}
		return Observation{Outcome: First, Expected: seq}
	}

	obs := Observation{Expected: s.expected}
	switch {
	case seq == s.expected:
		s.expected++
		obs.Outcome = InOrder
	case seq > s.expected:
		obs.Missing = int(seq - s.expected)
		obs.Untracked = t.addMissing(s, s.expected, seq)
		s.expected = seq + 1
		obs.Outcome = Gap
	default:
		if _, gap := s.missing[seq]; gap {
			delete(s.missing, seq)
			obs.Outcome = LateFill
		} else {
			obs.Outcome = Anomaly
			t.recordAnomaly(AnomalyRecord{Instrument: inst, Sequence: seq, Expected: s.expected})
		}
	}
	return obs
}

// addMissing records [from, to) as missing, keeping at most maxMissing of the
// newest numbers. It returns how many numbers were dropped.
func (t *Tracker) addMissing(s *stream, from, to int64) int64 {
	limit := int64(t.maxMissing)
	var dropped int64
	if to-from > limit {
		dropped = to - from - limit
		from = to - limit
	}
	for n := from; n < to; n++ {
		s.missing[n] = struct{}{}
	}
	if excess := len(s.missing) - t.maxMissing; excess > 0 {
		for _, n := range sortedKeys(s.missing)[:excess] {
			delete(s.missing, n)
		}
		dropped += int64(excess)
	}
	s.untracked += dropped
	return dropped
}

func (t *Tracker) recordAnomaly(rec AnomalyRecord) {
	t.anomalyCnt++
	if t.maxRecords <= 0 {
		return
	}
	if len(t.anomalies) >= t.maxRecords {
		copy(t.anomalies, t.anomalies[1:])
		t.anomalies = t.anomalies[:len(t.anomalies)-1]
	}
	t.anomalies = append(t.anomalies, rec)
}

// Missing returns the sorted missing numbers for an instrument.
func (t *Tracker) Missing(inst models.Instrument) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.streams[inst]
	if !ok {
		return nil
	}
	return sortedKeys(s.missing)
}

// Expected returns the next expected number and whether the stream exists.
func (t *Tracker) Expected(inst models.Instrument) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.streams[inst]
	if !ok {
		return 0, false
	}
	return s.expected, true
}

// Anomalies returns the total anomaly count and the retained recent records.
func (t *Tracker) Anomalies() (int64, []AnomalyRecord) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]AnomalyRecord, len(t.anomalies))
	copy(out, t.anomalies)
	return t.anomalyCnt, out
}

// Snapshot is a point-in-time copy of the tracker state.
type Snapshot struct {
	Missing   map[models.Instrument][]int64
	Anomalies int64
	// Untracked totals the missing numbers dropped over the stream limit.
	Untracked int64
}

// Snapshot copies the missing sets of every stream.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{Missing: make(map[models.Instrument][]int64, len(t.streams)), Anomalies: t.anomalyCnt}
	for inst, s := range t.streams {
		snap.Missing[inst] = sortedKeys(s.missing)
		snap.Untracked += s.untracked
	}
	return snap
}

// Reset forgets every stream, starting a fresh sequence space.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.streams = make(map[models.Instrument]*stream)
	t.anomalies = nil
	t.anomalyCnt = 0
}

func sortedKeys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
