package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patchline/patchline/internal/application/pipeline"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

// GoalSubmitRequest represents a goal submission request
type GoalSubmitRequest struct {
	ThreadID string            `json:"thread_id" binding:"required"`
	Graph    *domain.TaskGraph `json:"dag,omitempty"`
}

// GoalSubmitResponse represents a goal submission response
type GoalSubmitResponse struct {
	ItemID      string `json:"item_id"`
	ThreadID    string `json:"thread_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// QueueStatus represents one queue's depth and dead-letter count
type QueueStatus struct {
	Name        string `json:"name"`
	Depth       int    `json:"depth"`
	DeadLetters int    `json:"dead_letters"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	healthy := s.health == nil || s.health.IsHealthy()

	status := http.StatusOK
	text := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		text = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":    text,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSubmitGoal enqueues a goal for the pipeline. The thread id is the
// partition key, so goals for one thread are planned in submission order.
func (s *Server) handleSubmitGoal(c *gin.Context) {
	var req GoalSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	goal := domain.Goal{
		ThreadID: req.ThreadID,
		Graph:    req.Graph,
	}

	opts := ports.EnqueueOptions{PartitionKey: goal.ThreadID}
	itemID, err := ports.EnqueueJSON(c.Request.Context(), s.queues, pipeline.QueueGoals, goal, opts)
	if err != nil {
		s.logger.Error("failed to enqueue goal", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "ENQUEUE_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, GoalSubmitResponse{
		ItemID:      itemID,
		ThreadID:    goal.ThreadID,
		Status:      "accepted",
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetGraph returns the current snapshot of one graph. An uncommitted
// graph reads as empty at its initial version, so a reader error is a
// storage failure rather than a missing graph.
func (s *Server) handleGetGraph(c *gin.Context) {
	graphID := c.Param("id")

	snapshot, err := s.reader.Snapshot(c.Request.Context(), graphID)
	if err != nil {
		s.logger.Error("failed to read graph",
			zap.String("graph_id", graphID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to read graph",
			},
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// handleGetVersion returns just the current version of one graph
func (s *Server) handleGetVersion(c *gin.Context) {
	graphID := c.Param("id")

	version, err := s.reader.Version(c.Request.Context(), graphID)
	if err != nil {
		s.logger.Error("failed to read graph version",
			zap.String("graph_id", graphID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to read graph version",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"graph_id": graphID,
		"version":  version,
	})
}

// handleListQueues returns depth and dead-letter counts for every queue
func (s *Server) handleListQueues(c *gin.Context) {
	statuses := make([]QueueStatus, 0, len(pipeline.QueueNames()))
	for _, name := range pipeline.QueueNames() {
		depth, err := s.queues.Depth(c.Request.Context(), name)
		if err != nil {
			s.logger.Error("failed to read queue depth",
				zap.String("queue", name),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: ErrorDetail{
					Code:    "QUEUE_ERROR",
					Message: "Failed to read queue state",
					Details: err.Error(),
				},
			})
			return
		}

		dead, err := s.queues.DeadLetters(c.Request.Context(), name)
		if err != nil {
			s.logger.Error("failed to read dead letters",
				zap.String("queue", name),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: ErrorDetail{
					Code:    "QUEUE_ERROR",
					Message: "Failed to read queue state",
					Details: err.Error(),
				},
			})
			return
		}

		statuses = append(statuses, QueueStatus{
			Name:        name,
			Depth:       depth,
			DeadLetters: len(dead),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"queues": statuses,
	})
}

// handleDeadLetters returns the dead-letter items of one queue
func (s *Server) handleDeadLetters(c *gin.Context) {
	name := c.Param("name")

	valid := false
	for _, q := range pipeline.QueueNames() {
		if q == name {
			valid = true
			break
		}
	}
	if !valid {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "UNKNOWN_QUEUE",
				Message: "Unknown queue: " + name,
			},
		})
		return
	}

	dead, err := s.queues.DeadLetters(c.Request.Context(), name)
	if err != nil {
		s.logger.Error("failed to read dead letters",
			zap.String("queue", name),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "QUEUE_ERROR",
				Message: "Failed to read dead letters",
				Details: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue": name,
		"items": dead,
		"total": len(dead),
	})
}

// handleListRejections returns recorded audit rejections, oldest first
func (s *Server) handleListRejections(c *gin.Context) {
	rejections := s.rejections.All()

	c.JSON(http.StatusOK, gin.H{
		"rejections": rejections,
		"total":      len(rejections),
	})
}
