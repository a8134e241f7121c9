package ws

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/domain/registry"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
	"github.com/GriffinCanCode/aptools/internal/shared/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Page runtimes connect from localhost tooling
	},
}

// Handler manages page connections
type Handler struct {
	pages  *registry.Manager
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(pages *registry.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pages: pages, logger: logger}
}

// HandleConnection upgrades a page connection and serves it until it closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	id := types.PageID(c.Query("page_id"))
	if err := utils.ValidateID(string(id), "page_id", false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if id == registry.ActivePage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reserved page id"})
		return
	}
	if id != "" {
		if _, exists := h.pages.Get(id); exists {
			c.JSON(http.StatusConflict, gin.H{"error": registry.ErrPageExists.Error()})
			return
		}
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn := newConn(wsConn, h.logger)
	defer conn.Close()

	entry, err := h.pages.Open(c.Request.Context(), id, conn)
	if err != nil {
		h.logger.Warn("Page registration failed", zap.Error(err))
		return
	}
	id = entry.ID()
	defer h.pages.Close(id)

	if err := conn.Send(protocol.Hello{PageID: id}); err != nil {
		return
	}

	for msg := range conn.Messages() {
		if err := h.pages.Deliver(id, msg); err != nil {
			if errors.Is(err, protocol.ErrUnhandled) {
				h.logger.Debug("Ignored page message", zap.String("type", string(msg.Kind())))
				continue
			}
			h.logger.Warn("Failed to deliver page message", zap.String("page_id", string(id)), zap.Error(err))
		}
	}
}
