package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger logs every driven protocol step: method, path, the store id the
// step targets (when the route carries one, "-" otherwise), client,
// resulting status (200 applied, 409 inapplicable, ...), and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		store := c.Param("store")
		if store == "" {
			store = "-"
		}
		log.Printf("[%s] %s store=%s %s | %d | %s",
			c.Request.Method,
			c.Request.URL.Path,
			store,
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

// Recovery turns a panic while driving a protocol step into a 500 JSON
// response instead of taking down the control server, logging which route
// panicked alongside the recovered value so a crash mid-step is traceable
// back to the step that caused it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
