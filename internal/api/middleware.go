package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/squad-roster/internal/auth"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/service"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

const (
	loggerKey = "logger"
	callerKey = "caller"
)

const errorCodeUnauthorized service.ErrorCode = "UNAUTHORIZED"

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := res.Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			c.Set(loggerKey, reqLogger)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware verifies the bearer token, checks its type against allowed and stores the
// resulting caller on the echo context.
func AuthMiddleware(allowed ...auth.TokenType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return unauthorized(c, "missing bearer token")
			}

			claims, ok := auth.IsValidToken(token)
			if !ok {
				return unauthorized(c, "invalid token")
			}
			if !slices.Contains(allowed, claims.Type) {
				return unauthorized(c, "token type not allowed")
			}

			caller := model.Caller{
				UserID:      claims.UserID(),
				SystemAdmin: claims.IsAdmin(),
			}
			c.Set(callerKey, caller)

			l := GetLoggerFromContext(c).With(zap.String("caller_id", caller.UserID))
			c.Set(loggerKey, l)
			c.SetRequest(c.Request().WithContext(logger.WithLogger(c.Request().Context(), l)))

			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: service.NewError(errorCodeUnauthorized, message)})
}

func GetLoggerFromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

func GetCallerFromContext(c echo.Context) model.Caller {
	caller, _ := c.Get(callerKey).(model.Caller)
	return caller
}
