package logger

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Setup builds the process logger. Dev mode writes to a console writer,
// otherwise JSON. An explicit level always applies; when level is empty or
// invalid, dev defaults to debug and everything else to info.
func Setup(dev bool, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if dev {
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
		lvl = parsed
	}

	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(lvl).With().Stack().Logger()
	}

	return logger
}

var skipPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// GinRequests attaches logger to each request context and logs one line per
// request once the handler chain has finished.
func GinRequests(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		ctx := logger.With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("addr", c.ClientIP()).
			Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if skipPaths[c.Request.URL.Path] {
			return
		}

		status := c.Writer.Status()
		ev := zerolog.Ctx(c.Request.Context()).Info()
		switch {
		case status >= 500:
			ev = zerolog.Ctx(c.Request.Context()).Error()
		case status >= 400:
			ev = zerolog.Ctx(c.Request.Context()).Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Int("status", status).
			Dur("duration", time.Since(started)).
			Msg("http request")
	}
}
