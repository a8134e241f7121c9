package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/aptools/internal/shared/id"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestID tags every request with a sortable id. A valid inbound id is
// kept so a status client can correlate its own logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if !id.IsValid(rid) {
			rid = id.NewRequestID().String()
		}
		c.Set(requestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the id RequestID assigned to c.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
