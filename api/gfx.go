package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/utils"
)

const (
	defaultTransitionLimit = 20
	maxTransitionLimit     = 500
)

// HandleGetMode  godoc
//
//	@Summary	Current graphics mode
//	@Tags		gfx
//	@Produce	json
//	@Success	200	{object}	models.ModeResponse
//	@Router		/gfx/mode [get]
func (h *handlers) HandleGetMode(c *gin.Context) {
	c.JSON(http.StatusOK, models.ModeResponse{Mode: h.deps.Gfx.Mode()})
}

// HandleSetMode  godoc
//
//	@Summary		Request a graphics mode change
//	@Description	Answers with the action the change requires. Logout changes finish in the background once every graphical session has ended.
//	@Tags			gfx
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.ModeRequest	true	"target mode"
//	@Success		200		{object}	models.ModeResponse
//	@Failure		400		{object}	ProblemDetail
//	@Failure		409		{object}	ProblemDetail	"refused, see required_action"
//	@Failure		500		{object}	ProblemDetail
//	@Router			/gfx/mode [post]
func (h *handlers) HandleSetMode(c *gin.Context) {
	if c.Request.ContentLength == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewEmptyBodyProblem())
		return
	}

	var req models.ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewValidationProblem(err))
		return
	}

	target, err := models.ParseGpuMode(req.Mode)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewProblemDetail(
			WithStatus(http.StatusBadRequest),
			WithTitle("Invalid Mode"),
			WithDetail(err.Error()),
			WithInstance(c.Request.URL.Path),
		))
		return
	}

	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("gfx.target", string(target)))
	zlog.Ctx(ctx).Info("mode change requested", zap.String("target", string(target)))

	action, err := h.deps.Gfx.SetMode(ctx, target)
	if err != nil {
		problem := NewModeProblem(err, c.Request.URL.Path)
		zlog.Ctx(ctx).Warn("mode change not done", zap.Int("status", problem.Status), zap.Error(err))
		c.AbortWithStatusJSON(problem.Status, problem)
		return
	}

	span.SetAttributes(attribute.String("gfx.required_action", string(action)))
	c.JSON(http.StatusOK, models.ModeResponse{
		Mode:           target,
		RequiredAction: action,
		Message:        action.Description(),
	})
}

// HandleGetPower  godoc
//
//	@Summary	Runtime power state of the dedicated GPU
//	@Tags		gfx
//	@Produce	json
//	@Success	200	{object}	models.PowerResponse
//	@Router		/gfx/power [get]
func (h *handlers) HandleGetPower(c *gin.Context) {
	power, err := h.deps.Gfx.PowerStatus()
	if err != nil {
		zlog.Ctx(c.Request.Context()).Warn("could not read power status", zap.Error(err))
	}
	c.JSON(http.StatusOK, models.PowerResponse{Power: power})
}

func (h *handlers) HandleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Gfx.Status())
}

// HandleSetVfio  godoc
//
//	@Summary	Allow or forbid vfio mode
//	@Tags		gfx
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	object
//	@Failure	400	{object}	ProblemDetail
//	@Router		/gfx/vfio [post]
func (h *handlers) HandleSetVfio(c *gin.Context) {
	if c.Request.ContentLength == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewEmptyBodyProblem())
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewValidationProblem(err))
		return
	}

	if err := h.deps.Gfx.SetVfioEnabled(c.Request.Context(), *req.Enabled); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewProblemDetail(
			WithStatus(http.StatusInternalServerError),
			WithTitle("Config Write Failed"),
			WithDetail(err.Error()),
		))
		return
	}
	c.JSON(http.StatusOK, gin.H{"vfio_enabled": *req.Enabled})
}

func (h *handlers) HandleListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Devices.Describe())
}

// HandleListTransitions  godoc
//
//	@Summary	Latest mode transitions, newest first
//	@Tags		gfx
//	@Produce	json
//	@Param		limit	query		int	false	"maximum number of records"
//	@Success	200		{array}		models.Transition
//	@Failure	400		{object}	ProblemDetail
//	@Router		/gfx/transitions [get]
func (h *handlers) HandleListTransitions(c *gin.Context) {
	limit := defaultTransitionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTransitionLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, NewProblemDetail(
				WithStatus(http.StatusBadRequest),
				WithTitle("Invalid Limit"),
				WithDetail("limit must be between 1 and "+strconv.Itoa(maxTransitionLimit)),
			))
			return
		}
		limit = n
	}

	transitions, err := h.deps.History.Latest(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewProblemDetail(
			WithStatus(http.StatusInternalServerError),
			WithTitle("History Unavailable"),
			WithDetail(err.Error()),
		))
		return
	}
	c.JSON(http.StatusOK, transitions)
}

func (h *handlers) HandleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": utils.Version})
}
