package logger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is one captured log entry from a running script.
type Record struct {
	Time    time.Time
	Level   string
	Source  string
	Message string
}

// Sink captures script log output with bounded retention. Records are kept
// in arrival order; once capacity is reached the oldest record is dropped.
// Every record is also forwarded to the global logger tagged with its source.
type Sink struct {
	mu       sync.Mutex
	records  []Record
	capacity int
}

const DefaultSinkCapacity = 512

func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}
	Init()
	return &Sink{capacity: capacity}
}

func (s *Sink) append(level, source, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.records = append(s.records, Record{
		Time:    time.Now(),
		Level:   level,
		Source:  source,
		Message: msg,
	})
	if len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	s.mu.Unlock()

	switch level {
	case "error":
		Log.Error(msg, zap.String("script", source))
	case "warn":
		Log.Warn(msg, zap.String("script", source))
	default:
		Log.Info(msg, zap.String("script", source))
	}
}

func (s *Sink) Infof(source, format string, args ...interface{}) {
	s.append("info", source, format, args...)
}

func (s *Sink) Warnf(source, format string, args ...interface{}) {
	s.append("warn", source, format, args...)
}

func (s *Sink) Errorf(source, format string, args ...interface{}) {
	s.append("error", source, format, args...)
}

// Records returns a copy of the retained records, oldest first.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// RecordsFor returns the retained records for one source, oldest first.
func (s *Sink) RecordsFor(source string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Sink) Clear() {
	s.mu.Lock()
	s.records = s.records[:0]
	s.mu.Unlock()
}
