package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/internal/infrastructure/bridge"

	"github.com/gin-gonic/gin"
)

// EngineHandler exposes the playback engine's control surface over HTTP. The
// embedding host drives streams through it and receives engine events over
// the /events stream.
type EngineHandler struct {
	playback      ports.PlaybackService
	registry      ports.StreamRegistry
	mixer         ports.AudioMixer
	notifications ports.HostNotifications
	publisher     ports.EventPublisher
	tokens        *bridge.TokenIssuer
}

func NewEngineHandler(
	playback ports.PlaybackService,
	registry ports.StreamRegistry,
	mixer ports.AudioMixer,
	notifications ports.HostNotifications,
	publisher ports.EventPublisher,
	tokens *bridge.TokenIssuer,
) *EngineHandler {
	return &EngineHandler{
		playback:      playback,
		registry:      registry,
		mixer:         mixer,
		notifications: notifications,
		publisher:     publisher,
		tokens:        tokens,
	}
}

func (h *EngineHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/streams", h.LoadStream)
		api.GET("/streams", h.ListStreams)
		api.GET("/streams/:id", h.GetStream)
		api.DELETE("/streams/:id", h.CloseStream)

		api.POST("/streams/:id/play", h.Play)
		api.POST("/streams/:id/pause", h.Pause)
		api.POST("/streams/:id/retry", h.Retry)
		api.POST("/streams/:id/focus", h.Focus)
		api.PUT("/streams/:id/volume", h.SetVolume)
		api.PUT("/streams/:id/muted", h.SetMuted)
		api.PUT("/streams/:id/quality", h.SetQuality)
		api.PUT("/streams/:id/visibility", h.SetVisibility)

		api.POST("/system/interruption", h.AudioInterruption)
		api.POST("/system/route-change", h.AudioRouteChange)
		api.POST("/system/memory-warning", h.MemoryWarning)
		api.POST("/system/background", h.Background)
		api.POST("/system/foreground", h.Foreground)
		api.POST("/system/volume-button", h.VolumeButton)

		api.GET("/events", h.Events)
	}
}

func (h *EngineHandler) LoadStream(c *gin.Context) {
	var req struct {
		ID               string `json:"id"`
		SourceURL        string `json:"source_url" binding:"required"`
		Platform         string `json:"platform" binding:"required"`
		DisplayTitle     string `json:"display_title"`
		IsLive           bool   `json:"is_live"`
		ViewerCount      int    `json:"viewer_count"`
		RequestedQuality string `json:"requested_quality"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := &domain.StreamSession{
		ID:               domain.StreamID(req.ID),
		SourceURL:        req.SourceURL,
		Platform:         domain.Platform(req.Platform),
		DisplayTitle:     req.DisplayTitle,
		IsLive:           req.IsLive,
		ViewerCount:      req.ViewerCount,
		RequestedQuality: domain.QualityLevel(req.RequestedQuality),
		CreatedAt:        time.Now(),
	}

	if err := h.playback.LoadStream(c.Request.Context(), session); err != nil {
		c.Error(err)
		return
	}

	// The embedding host mounts a surface and connects it to the bridge
	// with this pairing token.
	token, err := h.tokens.Issue(session.ID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"stream_id":     session.ID,
		"pairing_token": token,
	})
}

func (h *EngineHandler) ListStreams(c *gin.Context) {
	states, err := h.registry.ListStates(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": states})
}

func (h *EngineHandler) GetStream(c *gin.Context) {
	id := domain.StreamID(c.Param("id"))

	state, err := h.registry.GetState(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	session, err := h.registry.GetSession(c.Request.Context(), id)
	if err != nil && !errors.Is(err, domain.ErrStreamNotFound) {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":   state,
		"session": session,
	})
}

func (h *EngineHandler) CloseStream(c *gin.Context) {
	id := domain.StreamID(c.Param("id"))
	if err := h.playback.CloseStream(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) Play(c *gin.Context) {
	h.transport(c, h.playback.Play)
}

func (h *EngineHandler) Pause(c *gin.Context) {
	h.transport(c, h.playback.Pause)
}

func (h *EngineHandler) Retry(c *gin.Context) {
	h.transport(c, h.playback.Retry)
}

func (h *EngineHandler) Focus(c *gin.Context) {
	h.transport(c, h.registry.SetActiveStream)
}

func (h *EngineHandler) SetVolume(c *gin.Context) {
	var req struct {
		Volume *float64 `json:"volume" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := domain.StreamID(c.Param("id"))
	if err := h.playback.SetVolume(c.Request.Context(), id, *req.Volume); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) SetMuted(c *gin.Context) {
	var req struct {
		Muted *bool `json:"muted" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := domain.StreamID(c.Param("id"))
	if err := h.playback.SetMuted(c.Request.Context(), id, *req.Muted); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) SetQuality(c *gin.Context) {
	var req struct {
		Level    string `json:"level" binding:"required"`
		Adaptive bool   `json:"adaptive"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level := domain.QualityLevel(req.Level)
	if !level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quality level"})
		return
	}

	id := domain.StreamID(c.Param("id"))
	if err := h.playback.SetQuality(c.Request.Context(), id, level, req.Adaptive); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) SetVisibility(c *gin.Context) {
	var req struct {
		Visible *bool `json:"visible" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := domain.StreamID(c.Param("id"))
	if err := h.registry.UpdateVisibility(c.Request.Context(), id, *req.Visible); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) AudioInterruption(c *gin.Context) {
	var req struct {
		Phase        string `json:"phase" binding:"required"`
		ShouldResume bool   `json:"should_resume"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Phase {
	case "began":
		h.notifications.AudioInterruptionBegan(c.Request.Context())
	case "ended":
		h.notifications.AudioInterruptionEnded(c.Request.Context(), req.ShouldResume)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "phase must be began or ended"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) AudioRouteChange(c *gin.Context) {
	var req struct {
		OutputLost bool `json:"output_lost"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.notifications.AudioRouteChanged(c.Request.Context(), req.OutputLost)
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) MemoryWarning(c *gin.Context) {
	h.notifications.MemoryWarning(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) Background(c *gin.Context) {
	h.notifications.EnterBackground(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) Foreground(c *gin.Context) {
	h.notifications.EnterForeground(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *EngineHandler) VolumeButton(c *gin.Context) {
	var req struct {
		Increase *bool `json:"increase" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.mixer.HandleVolumeButtonPress(*req.Increase)
	c.Status(http.StatusNoContent)
}

// Events streams engine events to the caller as server-sent events until the
// client disconnects.
func (h *EngineHandler) Events(c *gin.Context) {
	events, cancel := h.publisher.Subscribe(64)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *EngineHandler) transport(c *gin.Context, op func(ctx context.Context, id domain.StreamID) error) {
	id := domain.StreamID(c.Param("id"))
	if err := op(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
