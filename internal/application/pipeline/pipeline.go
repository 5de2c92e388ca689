package pipeline

import (
	"context"
	"sync"

	"github.com/patchline/patchline/pkg/domain"
)

// Names of the four handoff queues.
const (
	QueueGoals   = "goals"
	QueueTasks   = "tasks"
	QueuePatches = "patches"
	QueueReviews = "reviews"
)

// QueueNames lists every pipeline queue, in flow order.
func QueueNames() []string {
	return []string{QueueGoals, QueueTasks, QueuePatches, QueueReviews}
}

// Runner is one "process one unit of work" role entry point. RunOnce
// returns true if a unit of work was consumed; with an empty queue it is a
// safe no-op.
type Runner interface {
	Role() domain.Role
	RunOnce(ctx context.Context) (bool, error)
}

// RejectionLog records terminal audit rejections so they surface to a human
// instead of being retried.
type RejectionLog struct {
	mu      sync.RWMutex
	records []domain.Rejection
}

// NewRejectionLog creates an empty rejection log.
func NewRejectionLog() *RejectionLog {
	return &RejectionLog{}
}

// Record appends one rejection.
func (l *RejectionLog) Record(r domain.Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, r)
}

// All returns a copy of the recorded rejections, oldest first.
func (l *RejectionLog) All() []domain.Rejection {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]domain.Rejection(nil), l.records...)
}
