// Package diag carries generation-time diagnostics from the codec and schema
// builders to whoever invoked them. Library code never logs; it reports to a
// Sink, and callers decide where the reports go.
package diag

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/arloliu/canon/errs"
)

// Severity classifies a Diagnostic.
type Severity uint8

const (
	SeverityWarning Severity = 0x1
	SeverityError   Severity = 0x2
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is one report about a type declaration.
type Diagnostic struct {
	Severity Severity
	// Type is the declaration the report concerns.
	Type string
	// Item is the field or variant inside Type, empty for the type itself.
	Item    string
	Message string
	// Err is the underlying error for SeverityError reports.
	Err error
}

// FromError builds an error diagnostic, locating it through an
// *errs.DefinitionError when err carries one.
func FromError(err error) Diagnostic {
	d := Diagnostic{Severity: SeverityError, Message: err.Error(), Err: err}

	var defErr *errs.DefinitionError
	if errors.As(err, &defErr) {
		d.Type = defErr.Type
		d.Item = defErr.Item
		d.Message = defErr.Err.Error()
	}

	return d
}

// Warning builds a warning diagnostic.
func Warning(typeName, item, message string) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Type: typeName, Item: item, Message: message}
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Report(d Diagnostic) {
	f(d)
}

type discard struct{}

func (discard) Report(Diagnostic) {}

// Discard returns a Sink that drops every report.
func Discard() Sink {
	return discard{}
}

type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a Sink that logs reports through logger, or through
// slog.Default() when logger is nil.
func NewSlogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}

	return &slogSink{logger: logger}
}

func (s *slogSink) Report(d Diagnostic) {
	level := slog.LevelWarn
	if d.Severity == SeverityError {
		level = slog.LevelError
	}

	attrs := []slog.Attr{slog.String("type", d.Type)}
	if d.Item != "" {
		attrs = append(attrs, slog.String("item", d.Item))
	}
	if d.Err != nil {
		attrs = append(attrs, slog.Any("error", d.Err))
	}

	s.logger.LogAttrs(context.Background(), level, d.Message, attrs...)
}

// Collector is a Sink that keeps every report in memory.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append(c.items, d)
}

// Diagnostics returns a copy of the collected reports in arrival order.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)

	return out
}

// Errors returns the number of error reports collected.
func (c *Collector) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, d := range c.items {
		if d.Severity == SeverityError {
			n++
		}
	}

	return n
}
