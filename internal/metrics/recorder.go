// Package metrics records interaction, export and extraction metrics.
package metrics

import "time"

// Recorder defines the interface for recording service metrics.
type Recorder interface {
	// ObserveClick counts one classified click ("single" or "double").
	ObserveClick(kind string)
	// ObserveChange counts one committed session change by reason.
	ObserveChange(reason string)
	// ObserveExport records one export attempt.
	ObserveExport(format string, success bool, duration time.Duration)
	// ExtractionDone counts one tutorial extraction.
	ExtractionDone(err error)
	// SetSessions reports the number of live sessions.
	SetSessions(n int)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveClick(_ string) {}

func (n *NoopRecorder) ObserveChange(_ string) {}

func (n *NoopRecorder) ObserveExport(_ string, _ bool, _ time.Duration) {}

func (n *NoopRecorder) ExtractionDone(_ error) {}

func (n *NoopRecorder) SetSessions(_ int) {}
