// Package noop provides a metrics collector that records nothing, for tests
// and wiring where metrics are not configured.
package noop

import (
	"time"

	"github.com/patchline/patchline/pkg/ports"
)

// Collector discards every observation.
type Collector struct{}

var _ ports.MetricsCollector = Collector{}

// NewCollector creates a no-op collector.
func NewCollector() Collector { return Collector{} }

func (Collector) RecordGoalPlanned(string, int)                    {}
func (Collector) RecordTaskExecuted(string, string, time.Duration) {}
func (Collector) RecordPatchProduced()                             {}
func (Collector) RecordAuditVerdict(string)                        {}
func (Collector) RecordCommit(string, time.Duration)               {}
func (Collector) RecordRejectionRecorded()                         {}
func (Collector) SetQueueDepth(string, int)                        {}
func (Collector) SetDeadLetters(string, int)                       {}
func (Collector) RecordWorkerPoolStatus(string, int, int, int)     {}
