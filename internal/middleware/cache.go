package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl marks responses as shareable for maxAgeSeconds. Used on quiz
// listings, which tolerate brief staleness.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	value := fmt.Sprintf("public, max-age=%d", maxAgeSeconds)
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

// NoStore forbids caching. Attempt state and answer keys must never be
// served from a cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
