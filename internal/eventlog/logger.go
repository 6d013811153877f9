// Package eventlog implements the per-workflow event logger (C3): an
// append-only JSONL record of decisions, alignment checks, performance
// metrics, and errors, with a derived SQLite summary index layered on top.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind distinguishes the record shapes appended to the log.
type Kind string

const (
	KindEvent             Kind = "event"
	KindDecision          Kind = "decision"
	KindAlignmentCheck    Kind = "alignment_check"
	KindPerformanceMetric Kind = "performance_metric"
	KindError             Kind = "error"
)

// Entry is one line of the JSONL log. Fields not relevant to Kind are
// simply empty; unmarshaling never needs type assertions beyond this struct.
type Entry struct {
	Kind      Kind      `json:"kind"`
	WorkflowID string   `json:"workflow_id"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// event
	EventName string                 `json:"event_name,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	// decision
	Decision               string   `json:"decision,omitempty"`
	Rationale              string   `json:"rationale,omitempty"`
	AlternativesConsidered []string `json:"alternatives_considered,omitempty"`

	// alignment_check
	IsAligned bool   `json:"is_aligned,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// performance_metric
	MetricName string  `json:"metric_name,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Unit       string  `json:"unit,omitempty"`

	// error
	Message       string `json:"message,omitempty"`
	ExceptionRepr string `json:"exception_repr,omitempty"`
}

// Summary is the result of get_log_summary.
type Summary struct {
	TotalEvents     int                `json:"total_events"`
	Decisions       []Entry            `json:"decisions"`
	AlignmentChecks []Entry            `json:"alignment_checks"`
	PerformanceMetrics []Entry         `json:"performance_metrics"`
}

// nowFunc is overridable in tests; production code always uses time.Now.
var nowFunc = time.Now

// Logger appends structured records for one (workflow, agent) pair to a
// shared per-workflow JSONL file. Cheap to construct, per spec.md §4.3 —
// callers are expected to build one per stage invocation.
type Logger struct {
	workflowID string
	agent      string
	path       string

	// Index, if set, is refreshed with this workflow's running totals after
	// every append. Left nil, a Logger behaves exactly as it did before the
	// index existed: the JSONL file alone is authoritative.
	Index *Index

	mu sync.Mutex
}

// NewLogger creates logRoot if necessary and returns a logger for
// workflowID's JSONL file under it, scoped to agent for the Agent field on
// every entry it writes. The file itself is created on the first append.
func NewLogger(logRoot, workflowID, agent string) (*Logger, error) {
	if err := os.MkdirAll(logRoot, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: failed to create log root %s: %w", logRoot, err)
	}
	path := filepath.Join(logRoot, workflowID+".jsonl")
	return &Logger{workflowID: workflowID, agent: agent, path: path}, nil
}

// Path returns the JSONL file this logger appends to.
func (l *Logger) Path() string { return l.path }

// LogEvent appends a freeform named event with optional metadata.
func (l *Logger) LogEvent(name string, metadata map[string]interface{}) error {
	return l.append(Entry{
		Kind:      KindEvent,
		EventName: name,
		Metadata:  metadata,
	})
}

// LogDecision records a decision, its rationale, and optionally the
// alternatives considered and arbitrary metadata.
func (l *Logger) LogDecision(decision, rationale string, alternativesConsidered []string, metadata map[string]interface{}) error {
	return l.append(Entry{
		Kind:                   KindDecision,
		Decision:               decision,
		Rationale:              rationale,
		AlternativesConsidered: alternativesConsidered,
		Metadata:               metadata,
	})
}

// LogAlignmentCheck records the outcome of an alignment validation.
func (l *Logger) LogAlignmentCheck(isAligned bool, reason string) error {
	return l.append(Entry{
		Kind:      KindAlignmentCheck,
		IsAligned: isAligned,
		Reason:    reason,
	})
}

// LogPerformanceMetric records a named numeric measurement.
func (l *Logger) LogPerformanceMetric(name string, value float64, unit string) error {
	return l.append(Entry{
		Kind:       KindPerformanceMetric,
		MetricName: name,
		Value:      value,
		Unit:       unit,
	})
}

// LogError records a failure, with an optional serialized exception/stack.
func (l *Logger) LogError(message, exceptionRepr string) error {
	return l.append(Entry{
		Kind:          KindError,
		Message:       message,
		ExceptionRepr: exceptionRepr,
	})
}

func (l *Logger) append(e Entry) error {
	e.WorkflowID = l.workflowID
	e.Agent = l.agent
	e.Timestamp = nowFunc().UTC()

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("eventlog: failed to marshal entry: %w", err)
	}
	raw = append(raw, '\n')

	l.mu.Lock()
	err = func() error {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("eventlog: failed to open %s: %w", l.path, err)
		}
		defer f.Close()

		if _, err := f.Write(raw); err != nil {
			return fmt.Errorf("eventlog: failed to append to %s: %w", l.path, err)
		}
		return nil
	}()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if l.Index != nil {
		l.refreshIndex()
	}
	return nil
}

// refreshIndex recomputes this workflow's summary from the JSONL file and
// upserts it into the index. Best-effort: the JSONL log remains the source
// of truth, so a failed refresh is not surfaced to the caller of LogEvent et
// al. — it would otherwise turn an optional read-side accelerator into a
// hard dependency for every log write.
func (l *Logger) refreshIndex() {
	sum, err := GetLogSummary(filepath.Dir(l.path), l.workflowID)
	if err != nil {
		return
	}
	_ = l.Index.Refresh(context.Background(), l.workflowID, sum)
}

// GetLogSummary re-reads the JSONL file for workflowID under logRoot and
// tallies it per spec.md §4.3. The JSONL file is authoritative; this is a
// plain scan, not a query against the SQLite index (see Index).
func GetLogSummary(logRoot, workflowID string) (*Summary, error) {
	path := filepath.Join(logRoot, workflowID+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Summary{}, nil
		}
		return nil, fmt.Errorf("eventlog: failed to open %s: %w", path, err)
	}
	defer f.Close()

	return summarize(f)
}

func summarize(r io.Reader) (*Summary, error) {
	dec := json.NewDecoder(r)
	sum := &Summary{}
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("eventlog: failed to decode log entry: %w", err)
		}
		sum.TotalEvents++
		switch e.Kind {
		case KindDecision:
			sum.Decisions = append(sum.Decisions, e)
		case KindAlignmentCheck:
			sum.AlignmentChecks = append(sum.AlignmentChecks, e)
		case KindPerformanceMetric:
			sum.PerformanceMetrics = append(sum.PerformanceMetrics, e)
		}
	}
	return sum, nil
}
