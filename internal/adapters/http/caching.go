package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on successful GET requests
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}

		// Don't override if the handler already set one
		if existing := c.GetRespHeader("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics" || path == "/ws":
			ttl = "no-cache"

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasPrefix(path, "/v1/stores/nearby"),
			strings.HasPrefix(path, "/v1/stores/search"):
			ttl = "public, max-age=300" // 5 min for location queries

		case path == "/v1/distance":
			ttl = "public, max-age=86400" // Pure function of the query

		case strings.HasPrefix(path, "/v1/stores/"):
			ttl = "public, max-age=600" // 10 min for a single store

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
