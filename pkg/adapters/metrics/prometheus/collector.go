package prometheus

import (
	"time"

	"github.com/patchline/patchline/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus.
type Collector struct {
	goalsPlanned    *prometheus.CounterVec
	goalTasks       prometheus.Histogram
	tasksExecuted   *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	patchesTotal    prometheus.Counter
	auditVerdicts   *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	commitDuration  prometheus.Histogram
	rejectionsTotal prometheus.Counter
	queueDepth      *prometheus.GaugeVec
	deadLetters     *prometheus.GaugeVec
	workerIdle      *prometheus.GaugeVec
	workerBusy      *prometheus.GaugeVec
	workerStopped   *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*Collector)(nil)

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		goalsPlanned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchline_goals_planned_total",
				Help: "Total number of goals consumed by the planner",
			},
			[]string{"status"},
		),
		goalTasks: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "patchline_goal_tasks",
				Help:    "Tasks fanned out per goal",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
		),
		tasksExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchline_tasks_executed_total",
				Help: "Total number of tasks processed by the executor",
			},
			[]string{"tool", "status"},
		),
		taskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patchline_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"tool"},
		),
		patchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "patchline_patches_produced_total",
				Help: "Total number of patches produced by the executor",
			},
		),
		auditVerdicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchline_audit_verdicts_total",
				Help: "Total number of audit verdicts by status",
			},
			[]string{"status"},
		),
		commitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchline_commits_total",
				Help: "Total number of commit attempts by status",
			},
			[]string{"status"},
		),
		commitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "patchline_commit_duration_seconds",
				Help:    "Commit merge duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		rejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "patchline_rejections_recorded_total",
				Help: "Total number of audit rejections recorded by the committer",
			},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchline_queue_depth",
				Help: "Current depth of pipeline queues",
			},
			[]string{"queue"},
		),
		deadLetters: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchline_dead_letters",
				Help: "Current number of dead-lettered items per queue",
			},
			[]string{"queue"},
		),
		workerIdle: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchline_worker_pool_idle",
				Help: "Number of idle workers per role",
			},
			[]string{"role"},
		),
		workerBusy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchline_worker_pool_busy",
				Help: "Number of busy workers per role",
			},
			[]string{"role"},
		),
		workerStopped: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchline_worker_pool_stopped",
				Help: "Number of stopped workers per role",
			},
			[]string{"role"},
		),
	}
}

// RecordGoalPlanned records one planned goal and its fan-out size.
func (c *Collector) RecordGoalPlanned(status string, tasks int) {
	c.goalsPlanned.WithLabelValues(status).Inc()
	if tasks > 0 {
		c.goalTasks.Observe(float64(tasks))
	}
}

// RecordTaskExecuted records one executor unit of work.
func (c *Collector) RecordTaskExecuted(tool, status string, duration time.Duration) {
	c.tasksExecuted.WithLabelValues(tool, status).Inc()
	c.taskDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordPatchProduced increments the produced-patch counter.
func (c *Collector) RecordPatchProduced() {
	c.patchesTotal.Inc()
}

// RecordAuditVerdict records one audit verdict.
func (c *Collector) RecordAuditVerdict(status string) {
	c.auditVerdicts.WithLabelValues(status).Inc()
}

// RecordCommit records one commit attempt.
func (c *Collector) RecordCommit(status string, duration time.Duration) {
	c.commitsTotal.WithLabelValues(status).Inc()
	c.commitDuration.Observe(duration.Seconds())
}

// RecordRejectionRecorded counts a terminal audit rejection.
func (c *Collector) RecordRejectionRecorded() {
	c.rejectionsTotal.Inc()
}

// SetQueueDepth sets the current depth of a queue.
func (c *Collector) SetQueueDepth(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetDeadLetters sets the current dead-letter count of a queue.
func (c *Collector) SetDeadLetters(queue string, count int) {
	c.deadLetters.WithLabelValues(queue).Set(float64(count))
}

// RecordWorkerPoolStatus records driver pool status for a role.
func (c *Collector) RecordWorkerPoolStatus(role string, idle, busy, stopped int) {
	c.workerIdle.WithLabelValues(role).Set(float64(idle))
	c.workerBusy.WithLabelValues(role).Set(float64(busy))
	c.workerStopped.WithLabelValues(role).Set(float64(stopped))
}
