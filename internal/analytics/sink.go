// Package analytics appends one JSON record per handled interaction to
// a JSONL file. The sink is fire-and-forget; analytics failures never
// affect request handling.
package analytics

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one interaction as it appears in the analytics log.
type Record struct {
	Timestamp        time.Time         `json:"timestamp"`
	RequestID        string            `json:"request_id"`
	Transcript       string            `json:"transcript"`
	TranscriptLength int               `json:"transcript_length"`
	Intent           string            `json:"intent"`
	Intents          []string          `json:"intents,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`
	EntityCount      int               `json:"entity_count"`
	Confidence       float64           `json:"confidence"`
	Success          bool              `json:"success"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	ResponseTimeMS   int64             `json:"response_time_ms"`
	CRMCallResult    string            `json:"crm_call_result,omitempty"`
	AIEnhanced       bool              `json:"ai_enhanced"`
	SegmentCount     int               `json:"segment_count,omitempty"`
}

// Sink writes records asynchronously through a buffered channel. A nil
// *Sink drops every record, so callers never branch on whether
// analytics is enabled.
type Sink struct {
	records chan Record
	done    chan struct{}
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewSink opens (creating directories as needed) the JSONL file in
// append mode and starts the writer goroutine.
func NewSink(path string, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		records: make(chan Record, 256),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go s.run(f)
	return s, nil
}

func (s *Sink) run(f *os.File) {
	defer close(s.done)
	defer f.Close()

	enc := json.NewEncoder(f)
	for rec := range s.records {
		if err := enc.Encode(rec); err != nil {
			s.logger.Warn("analytics write failed", "error", err)
		}
	}
}

// Log enqueues a record without blocking. Records are dropped when the
// buffer is full.
func (s *Sink) Log(rec Record) {
	if s == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.TranscriptLength = len(rec.Transcript)
	rec.EntityCount = len(rec.Entities)

	select {
	case s.records <- rec:
	default:
		s.logger.Warn("analytics buffer full, dropping record", "request_id", rec.RequestID)
	}
}

// Close flushes buffered records and closes the file.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.records)
		<-s.done
	})
}
