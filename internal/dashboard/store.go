package dashboard

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"cryptobridge/internal/sequence"
	"cryptobridge/reader"
)

// Source is a running streaming session whose lifecycle can be inspected.
type Source interface {
	State() reader.State
	Diagnostics() sequence.Snapshot
}

// sourceStatus is the serialisable view of one source.
type sourceStatus struct {
	Name      string             `json:"name"`
	State     string             `json:"state"`
	Anomalies int64              `json:"anomalies"`
	Untracked int64              `json:"untracked"`
	Missing   map[string][]int64 `json:"missing,omitempty"`
}

// sourceStore keeps the registered sources keyed by name.
type sourceStore struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func newSourceStore() *sourceStore {
	return &sourceStore{sources: make(map[string]Source)}
}

func (s *sourceStore) register(name string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = src
}

// snapshot returns the status of every source ordered by name.
func (s *sourceStore) snapshot() []sourceStatus {
	s.mu.RLock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sources := make(map[string]Source, len(s.sources))
	for k, v := range s.sources {
		sources[k] = v
	}
	s.mu.RUnlock()

	sort.Strings(names)
	out := make([]sourceStatus, 0, len(names))
	for _, name := range names {
		src := sources[name]
		diag := src.Diagnostics()
		status := sourceStatus{
			Name:      name,
			State:     src.State().String(),
			Anomalies: diag.Anomalies,
			Untracked: diag.Untracked,
		}
		for inst, missing := range diag.Missing {
			if len(missing) == 0 {
				continue
			}
			if status.Missing == nil {
				status.Missing = make(map[string][]int64)
			}
			status.Missing[inst.String()] = missing
		}
		out = append(out, status)
	}
	return out
}

// logRecord is the serialisable representation of a captured log entry.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore retains the most recent log entries. It is a logrus hook so it can
// be attached directly to the process logger.
type logStore struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	ls := &logStore{limit: limit}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}

	for k, v := range entry.Data {
		if k == "component" {
			continue
		}
		if record.Fields == nil {
			record.Fields = make(map[string]interface{}, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			record.Fields[k] = val.Error()
		case fmt.Stringer:
			record.Fields[k] = val.String()
		default:
			record.Fields[k] = val
		}
	}

	s.mu.Lock()
	s.items = append(s.items, record)
	if len(s.items) > s.limit {
		s.items = append([]logRecord(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]logRecord, len(s.items))
	copy(out, s.items)
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
