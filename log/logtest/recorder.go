/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/windowlimit/go-windowlimit/log"
)

// RecordedEntry represents recorded entry which was logged.
type RecordedEntry struct {
	Fields []log.Field
	Level  log.Level
	Time   time.Time
	Text   string
}

// FindField tries to find field in logging entry by key.
func (re *RecordedEntry) FindField(key string) (log.Field, bool) {
	for _, field := range re.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return log.Field{}, false
}

// FieldString returns the string value of the field with the given key, or "" if there is no such field.
func (re *RecordedEntry) FieldString(key string) string {
	if field, ok := re.FindField(key); ok {
		return string(field.Bytes)
	}
	return ""
}

type entriesStore struct {
	mu      sync.RWMutex
	entries []RecordedEntry
}

//nolint:gocritic
func (s *entriesStore) WriteEntry(e logf.Entry) {
	fields := make([]log.Field, 0, len(e.Fields)+len(e.DerivedFields))
	fields = append(fields, e.DerivedFields...)
	fields = append(fields, e.Fields...)
	s.mu.Lock()
	s.entries = append(s.entries, RecordedEntry{
		Fields: fields,
		Level:  convertLogfLevel(e.Level),
		Time:   e.Time,
		Text:   e.Text,
	})
	s.mu.Unlock()
}

// Recorder is an implementation of log.FieldLogger that
// records all logged entries for later inspection in tests.
// Entries are recorded synchronously at the debug level.
type Recorder struct {
	*log.LogfAdapter
	store *entriesStore
}

// NewRecorder returns an initialized Recorder.
func NewRecorder() *Recorder {
	store := &entriesStore{}
	return &Recorder{&log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, store)}, store}
}

// With returns a new Recorder with the given additional fields. Both recorders share entries.
func (r *Recorder) With(fs ...log.Field) log.FieldLogger {
	return &Recorder{r.LogfAdapter.With(fs...).(*log.LogfAdapter), r.store}
}

// WithLevel returns a new Recorder with the given additional level check. Both recorders share entries.
func (r *Recorder) WithLevel(level log.Level) log.FieldLogger {
	return &Recorder{r.LogfAdapter.WithLevel(level).(*log.LogfAdapter), r.store}
}

// Entries returns all recorded logging entries.
func (r *Recorder) Entries() []RecordedEntry {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]RecordedEntry(nil), r.store.entries...)
}

// FindEntry tries to find the first recorded logging entry with the given message.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	found := r.FindAllEntriesByFilter(func(entry RecordedEntry) bool { return entry.Text == msg })
	if len(found) == 0 {
		return RecordedEntry{}, false
	}
	return found[0], true
}

// FindAllEntriesByFilter returns all recorded logging entries satisfying the filter.
func (r *Recorder) FindAllEntriesByFilter(filter func(entry RecordedEntry) bool) []RecordedEntry {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var res []RecordedEntry
	for _, entry := range r.store.entries {
		if filter(entry) {
			res = append(res, entry)
		}
	}
	return res
}

// Reset resets all recorded logs.
func (r *Recorder) Reset() {
	r.store.mu.Lock()
	r.store.entries = nil
	r.store.mu.Unlock()
}

func convertLogfLevel(value logf.Level) log.Level {
	switch value {
	case logf.LevelError:
		return log.LevelError
	case logf.LevelWarn:
		return log.LevelWarn
	case logf.LevelDebug:
		return log.LevelDebug
	default:
		return log.LevelInfo
	}
}
