package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zenfocus/backend/internal/model"
	"zenfocus/backend/internal/service"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 15 * time.Second
)

type TimerHandler struct {
	timerService *service.TimerService
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.State(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) Start(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.Start(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.Pause(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) Stop(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.Stop(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) Next(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.Next(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) SwitchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.SwitchMode(c.Request.Context(), userID, model.TimerMode(req.Mode))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) SetNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, apiErr := h.timerService.SetNote(c.Request.Context(), userID, req.Note)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Events streams engine events as server-sent events. The first event is the
// current state.
func (h *TimerHandler) Events(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events, cancel, apiErr := h.timerService.Subscribe(ctx, userID, eventBuffer)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	view, apiErr := h.timerService.State(ctx, userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("state", view)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
