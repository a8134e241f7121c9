package page

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/domain/replay"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
)

// ControlPrefix is the path prefix of the control endpoints.
const ControlPrefix = "/_aptools"

// NewHandler serves the control endpoints and proxies everything else to
// target through the runtime.
func NewHandler(rt *Runtime, target *url.URL) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(rt.metrics))

	c := &control{rt: rt}
	group := router.Group(ControlPrefix)
	group.POST("/replay", c.replay)
	group.GET("/state", c.state)
	group.POST("/navigate", c.navigate)

	router.NoRoute(gin.WrapH(NewProxy(target, rt)))
	return router
}

type control struct {
	rt *Runtime
}

func (c *control) replay(ctx *gin.Context) {
	var duration float64
	if raw := ctx.Query("duration"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a positive number of seconds"})
			return
		}
		duration = d
	}

	outcome, err := c.rt.Trigger(ctx.Request.Context(), duration)
	if err != nil {
		status, body := replayError(err)
		c.rt.logger.Warn("Replay failed", zap.Error(err))
		ctx.JSON(status, body)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"outcome": outcome.String(),
		"state":   c.rt.machine.Snapshot(),
	})
}

func (c *control) state(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.rt.State())
}

func (c *control) navigate(ctx *gin.Context) {
	target := ctx.Query("url")
	if target == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	reset := c.rt.Navigate(target)
	ctx.JSON(http.StatusOK, gin.H{
		"reset": reset,
		"state": c.rt.machine.Snapshot(),
	})
}

func replayError(err error) (int, gin.H) {
	var httpErr *replay.HTTPError
	switch {
	case errors.Is(err, replay.ErrReplayInFlight):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, replay.ErrDurationUnavailable):
		return http.StatusUnprocessableEntity, gin.H{"error": replay.ErrDurationUnavailable.Error()}
	case errors.As(err, &httpErr):
		return http.StatusBadGateway, gin.H{"error": "Failed: " + strconv.Itoa(httpErr.Status), "status": httpErr.Status}
	default:
		return http.StatusBadGateway, gin.H{"error": "Error: " + err.Error()}
	}
}
