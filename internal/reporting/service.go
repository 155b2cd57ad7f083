package reporting

import (
	"context"
	"errors"

	"voicedash/internal/calls"
)

// Service computes dashboard aggregates over the call attempt history.
//
// Aggregation is done in-process over the attempt store; the history for a
// single dashboard stays small enough that a dedicated rollup table is not
// warranted yet.

type Service struct {
	store calls.Store
}

func NewService(store calls.Store) *Service { return &Service{store: store} }

func (s *Service) CallsSummary(ctx context.Context) (CallsSummary, error) {
	if s.store == nil {
		return CallsSummary{}, errors.New("reporting: store not configured")
	}

	rows, err := s.store.List(ctx, 0)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{}
	for _, a := range rows {
		out.TotalAttempts++
		out.TotalDurationSeconds += a.DurationSeconds
		out.TotalCost += a.Cost
		if a.RecordingURL != "" || a.RecordingLocalPath != "" {
			out.RecordedCalls++
		}
		if a.Transcript != "" {
			out.TranscribedCalls++
		}

		switch a.Type {
		case calls.CallTypeBulk:
			out.BulkDispatches++
		default:
			out.SingleDispatches++
		}

		switch a.Status {
		case calls.CallStatusInitiated:
			out.InitiatedCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusUnknown:
			out.UnknownCalls++
		}
	}
	if out.TotalAttempts > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalAttempts
	}
	return out, nil
}
