package port

import "portfolio_aggregator/internal/domain/entity"

// AttemptRecorder receives every fetch attempt made by the fallback cascade.
// Implementations must not block.
type AttemptRecorder interface {
	RecordAttempt(attempt entity.FetchAttempt)
}

// BatchRecorder counts fan-out item outcomes.
type BatchRecorder interface {
	RecordBatchItem(kind, outcome string)
}
