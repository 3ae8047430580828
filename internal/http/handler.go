package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
	"replay-director/internal/service"
	"replay-director/internal/telemetry"
)

type Handler struct {
	directorService *service.DirectorService
	log             zerolog.Logger
}

func NewHandler(directorService *service.DirectorService, log zerolog.Logger) *Handler {
	return &Handler{
		directorService: directorService,
		log:             log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.POST("/runs", h.createRun)
		public.GET("/runs/:id", h.getRun)
		public.GET("/runs/:id/commands", h.listCommands)
		public.GET("/runs/:id/overlay", h.getOverlay)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.DELETE("/runs/:id", h.abortRun)
	}
}

type createRunRequest struct {
	TrackName       string                 `json:"track_name" binding:"required"`
	CameraGroups    map[string]int         `json:"camera_groups"`
	IncidentSamples []race.TelemetrySample `json:"incident_samples"`
	RaceSamples     []race.TelemetrySample `json:"race_samples" binding:"required"`
}

func (h *Handler) createRun(c *gin.Context) {
	var payload createRunRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	req := service.RunRequest{
		TrackName:    payload.TrackName,
		CameraGroups: payload.CameraGroups,
		RaceSamples:  telemetry.NewSliceSource(payload.RaceSamples),
	}
	if len(payload.IncidentSamples) > 0 {
		req.IncidentSamples = telemetry.NewSliceSource(payload.IncidentSamples)
	}

	run, err := h.directorService.Start(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "ok",
		"run_id": run.ID,
		"track":  run.TrackName,
	})
}

func (h *Handler) getRun(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, successResponse(run.Result()))
}

func (h *Handler) listCommands(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, successResponse(run.Commands()))
}

func (h *Handler) getOverlay(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	stored, err := h.directorService.StoredRun(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(stored.Overlay))
}

func (h *Handler) abortRun(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	if err := h.directorService.Abort(id); err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().
		Str("run_id", id.String()).
		Str("subject", c.GetString(subjectKey)).
		Msg("run abort requested over api")
	c.JSON(http.StatusAccepted, gin.H{"status": "aborting", "run_id": id})
}

func (h *Handler) lookupRun(c *gin.Context) (*service.Run, bool) {
	id, ok := parseRunID(c)
	if !ok {
		return nil, false
	}
	run, err := h.directorService.Get(id)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return run, true
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid run id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
