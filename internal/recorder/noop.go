package recorder

import (
	"context"

	"github.com/google/uuid"

	"FairValue/internal/model"
	"FairValue/internal/profiler"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
// It still hands out ids so callers can correlate inputs and outputs in logs.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SaveInput(_ context.Context, _ *model.DCFInput) (string, error) {
	return uuid.NewString(), nil
}

func (n *NoopRecorder) SaveOutput(_ context.Context, inputID string, out *model.DCFOutput) (*OutputRecord, error) {
	return &OutputRecord{ID: uuid.NewString(), InputID: inputID, Output: out.Clone()}, nil
}

func (n *NoopRecorder) History(_ context.Context, _, _ string, _ int) ([]HistoryEntry, error) {
	return nil, nil
}

func (n *NoopRecorder) Stats(_ context.Context, _ string) (*Stats, error) { return &Stats{}, nil }
func (n *NoopRecorder) RecordPerformance(_ context.Context, _ *profiler.Report) error { return nil }
func (n *NoopRecorder) Close() error { return nil }
