package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/aptools/internal/domain/registry"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// queryTimeout bounds a status query against a page's relay.
const queryTimeout = 2 * time.Second

// Version is reported by the root endpoint.
var Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	pages     *registry.Manager
	startedAt time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(pages *registry.Manager) *Handlers {
	return &Handlers{pages: pages, startedAt: time.Now()}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "AP Tools host",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"pages":  h.pages.Stats(),
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// ListPages lists all connected pages
func (h *Handlers) ListPages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pages": h.pages.List(),
		"stats": h.pages.Stats(),
	})
}

// GetState answers a status query from the page's cached snapshot
func (h *Handlers) GetState(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	ps, err := h.pages.Query(ctx, types.PageID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

// GetBadge returns the indicator of a page
func (h *Handlers) GetBadge(c *gin.Context) {
	page, ok := h.pages.Get(types.PageID(c.Param("id")))
	if !ok {
		respondError(c, registry.ErrPageNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pageId": page.ID,
		"badge":  h.pages.Board().Indicator(page.ID),
	})
}

// FocusPage makes a page the active one
func (h *Handlers) FocusPage(c *gin.Context) {
	id := types.PageID(c.Param("id"))
	if !h.pages.Focus(id) {
		respondError(c, registry.ErrPageNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pageId": id})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrPageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "page did not answer"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
