package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/internal/auth"
)

const contextKeyClientID = "client_id"

// multipart framing on top of the raw upload
const multipartOverhead = 1 << 20

// ConfigureMiddleware installs the middleware shared by every route
func ConfigureMiddleware(e *echo.Echo, options Options, logger *zap.Logger) {
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("uri", v.URI),
				zap.String("method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	origins := options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders: ExposedHeaders,
	}))

	if options.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(options.MaxUploadBytes+multipartOverhead, 10) + "B"))
	}
}

// bearerToken extracts the token from an Authorization header
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireClient rejects requests without a valid client token. With no
// secret configured auth is disabled and every request passes.
func RequireClient(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	return clientAuth(secret, true, logger)
}

// OptionalClient records the client of a valid token but lets anonymous
// requests through. A token that is present and invalid is still rejected.
func OptionalClient(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	return clientAuth(secret, false, logger)
}

func clientAuth(secret []byte, required bool, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(secret) == 0 {
				return next(c)
			}

			token := bearerToken(c)
			if token == "" {
				if !required {
					return next(c)
				}
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := auth.ValidateToken(secret, token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			c.Set(contextKeyClientID, claims.ClientID)
			return next(c)
		}
	}
}

// ClientID returns the authenticated client of the request, if any
func ClientID(c echo.Context) string {
	id, _ := c.Get(contextKeyClientID).(string)
	return id
}

// errorHandler renders echo errors (404 routes, body limit, panics) in the
// same shape as handler errors
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			message = fmt.Sprint(he.Message)
		} else {
			logger.Error("Unhandled error", zap.Error(err))
		}

		code := strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
		if code == "" {
			code = "error"
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorResponse{Error: code, Message: message})
		}
		if writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
	}
}
