package relay

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// requestLogger logs one line per request. Streaming responses are logged
// when the handler returns, which is before the stream body is written.
func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Warn("request completed with server error", fields...)
		case c.Path() == "/healthcheck":
			// health checks are noisy
		default:
			logger.Debug("request completed", fields...)
		}
		return err
	}
}
