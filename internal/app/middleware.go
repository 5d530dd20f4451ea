package app

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/cloudjob/internal/logger"
)

// RequestLogger returns a middleware that logs HTTP requests
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		stop := time.Now()
		fields := map[string]interface{}{
			"status":  c.Response().StatusCode(),
			"latency": stop.Sub(start).String(),
			"ip":      c.IP(),
			"method":  c.Method(),
			"path":    c.Path(),
			"handler": c.Route().Name,
		}
		// job routes carry the id
		if id := c.Params("id"); id != "" {
			fields["job_id"] = id
		}
		logger.InfoWithFields("Request", fields)

		return err
	}
}
