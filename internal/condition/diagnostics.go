package condition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Severity classifies a diagnostic raised during evaluation.
type Severity int

const (
	// SeverityCoercion marks a value replaced by its neutral default.
	SeverityCoercion Severity = iota
	// SeverityConfiguration marks a misconfigured subtree that evaluated to false.
	SeverityConfiguration
	// SeverityDeserialization marks persisted text that could not be decoded.
	SeverityDeserialization
)

func (s Severity) String() string {
	switch s {
	case SeverityConfiguration:
		return "configuration"
	case SeverityDeserialization:
		return "deserialization"
	default:
		return "coercion"
	}
}

// ConfigError is a configuration problem tied to one node of a tree.
type ConfigError struct {
	NodeID string
	Type   string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("condition %s (%s): %v", e.NodeID, e.Type, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Diagnostic is an out-of-band signal emitted while evaluating a tree.
type Diagnostic struct {
	Severity  Severity
	NodeID    string
	Attribute string
	Value     any
	Err       error
}

// Reporter receives diagnostics. Implementations must be safe for
// concurrent use because one tree may be evaluated from many goroutines.
type Reporter interface {
	Report(d Diagnostic)
}

// Discard drops every diagnostic.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}

// SlogReporter logs configuration and deserialization problems at WARN and
// coercion warnings at DEBUG.
type SlogReporter struct {
	Logger *slog.Logger
}

// NewSlogReporter returns a reporter writing to logger, or slog.Default() when nil.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{Logger: logger}
}

// Report implements Reporter.
func (r *SlogReporter) Report(d Diagnostic) {
	level := slog.LevelWarn
	if d.Severity == SeverityCoercion {
		level = slog.LevelDebug
	}
	r.Logger.Log(context.Background(), level, "condition diagnostic",
		slog.String("severity", d.Severity.String()),
		slog.String("node_id", d.NodeID),
		slog.String("attribute", d.Attribute),
		slog.Any("value", d.Value),
		slog.Any("error", d.Err),
	)
}

// Collector accumulates diagnostics in memory.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report implements Reporter.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns a copy of everything collected so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Count returns the number of collected diagnostics with the given severity.
func (c *Collector) Count(sev Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// Tee fans a diagnostic out to several reporters.
type Tee []Reporter

// Report implements Reporter.
func (t Tee) Report(d Diagnostic) {
	for _, r := range t {
		r.Report(d)
	}
}
