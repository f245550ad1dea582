package app

import "dental-quest-service/internal/domain"

// Recorder receives engine telemetry. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	AttemptStarted(kind domain.Kind)
	AttemptFinished(kind domain.Kind, reason SubmitReason, result domain.AssessmentResult)
	AttemptAbandoned(kind domain.Kind)
	PersistFailed()
}

type nopRecorder struct{}

func (nopRecorder) AttemptStarted(domain.Kind) {}
func (nopRecorder) AttemptFinished(domain.Kind, SubmitReason, domain.AssessmentResult) {}
func (nopRecorder) AttemptAbandoned(domain.Kind) {}
func (nopRecorder) PersistFailed() {}
