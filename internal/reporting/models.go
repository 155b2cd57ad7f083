package reporting

// CallsSummary aggregates call attempt metrics for the dashboard.

type CallsSummary struct {
	TotalAttempts int `json:"total_attempts"`

	InitiatedCalls  int `json:"initiated_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	UnknownCalls    int `json:"unknown_calls"`

	SingleDispatches int `json:"single_dispatches"`
	BulkDispatches   int `json:"bulk_dispatches"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	TotalCost float64 `json:"total_cost"`

	RecordedCalls    int `json:"recorded_calls"`
	TranscribedCalls int `json:"transcribed_calls"`
}
