package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandleGraphStream streams commit events for a specific graph
func (h *Handler) HandleGraphStream(c *gin.Context) {
	graphID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("graph_id", graphID),
		zap.String("client", c.ClientIP()))

	eventChan := make(chan domain.CommitEvent, 10)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.subscribeToCommits(ctx, eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			// Only send events for this graph
			if event.GraphID != graphID {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// subscribeToCommits forwards commit events into ch without ever blocking
// the publisher; a full channel drops the event for this client.
func (h *Handler) subscribeToCommits(ctx context.Context, ch chan<- domain.CommitEvent) {
	handler := func(ctx context.Context, event domain.CommitEvent) error {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("graph_id", event.GraphID),
				zap.String("patch_id", event.PatchID))
		}
		return nil
	}

	if err := h.eventBus.Subscribe(ctx, ports.TopicCommits, handler); err != nil {
		h.logger.Error("failed to subscribe to commit events",
			zap.String("topic", ports.TopicCommits),
			zap.Error(err))
	}
}
