package ringstore

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Sink receives human-readable status lines from [Storage].
//
// Issue is called for failures and anomalies, Success for completed Loads
// and Saves. Sinks are called synchronously from Load/Save.
type Sink interface {
	Issue(msg string)
	Success(msg string)
}

type nopSink struct{}

func (nopSink) Issue(string)   {}
func (nopSink) Success(string) {}

// WriterSink writes "warning: <msg>" and "ok: <msg>" lines to W.
// Issues go to W; successes go to W only when Verbose is set.
type WriterSink struct {
	W       io.Writer
	Verbose bool
}

// Issue writes "warning: msg".
func (s WriterSink) Issue(msg string) {
	_, _ = fmt.Fprintln(s.W, "warning:", msg)
}

// Success writes "ok: msg" when Verbose is set.
func (s WriterSink) Success(msg string) {
	if !s.Verbose {
		return
	}

	_, _ = fmt.Fprintln(s.W, "ok:", msg)
}

// LogrusSink reports issues at warn level and successes at info level.
type LogrusSink struct {
	logger log.FieldLogger
}

// NewLogrusSink returns a sink logging through l with a "ring" field.
// A nil l uses the logrus standard logger.
func NewLogrusSink(l log.FieldLogger, ring string) LogrusSink {
	if l == nil {
		l = log.StandardLogger()
	}

	return LogrusSink{logger: l.WithField("ring", ring)}
}

// Issue logs msg at warn level.
func (s LogrusSink) Issue(msg string) {
	s.logger.Warn(msg)
}

// Success logs msg at info level.
func (s LogrusSink) Success(msg string) {
	s.logger.Info(msg)
}

// SinkFuncs adapts two functions to [Sink]. Nil functions are skipped.
type SinkFuncs struct {
	OnIssue   func(msg string)
	OnSuccess func(msg string)
}

// Issue calls OnIssue.
func (s SinkFuncs) Issue(msg string) {
	if s.OnIssue != nil {
		s.OnIssue(msg)
	}
}

// Success calls OnSuccess.
func (s SinkFuncs) Success(msg string) {
	if s.OnSuccess != nil {
		s.OnSuccess(msg)
	}
}

var (
	_ Sink = nopSink{}
	_ Sink = WriterSink{}
	_ Sink = LogrusSink{}
	_ Sink = SinkFuncs{}
)
