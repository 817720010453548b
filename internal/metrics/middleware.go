package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		method := c.Method()
		HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		return err
	}
}
