package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader propagates the request identifier to and from clients.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key the request id is stored under, so
	// the request logger and handlers read it without touching headers.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with an identifier. An inbound
// X-Request-ID (from a gateway or the caller) is reused unchanged; otherwise a
// fresh UUID is assigned. The id is stored on the context and echoed in the
// response header so a client-reported failure can be matched to its log
// lines. Register before the request logger.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
