package ports

import "time"

// MetricsCollector records pipeline activity. Implementations must be safe
// for concurrent use.
type MetricsCollector interface {
	RecordGoalPlanned(status string, tasks int)
	RecordTaskExecuted(tool, status string, duration time.Duration)
	RecordPatchProduced()
	RecordAuditVerdict(status string)
	RecordCommit(status string, duration time.Duration)
	RecordRejectionRecorded()
	SetQueueDepth(queue string, depth int)
	SetDeadLetters(queue string, count int)
	RecordWorkerPoolStatus(role string, idle, busy, stopped int)
}
