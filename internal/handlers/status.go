package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/version"
)

// APIChecker runs the registration service self-test.
type APIChecker interface {
	CheckAPI(ctx context.Context) registration.APICheckResult
}

// StatusHandler serves /status: build info plus a live registration check.
type StatusHandler struct {
	logger      *slog.Logger
	checker     APIChecker
	environment string
}

// StatusResponse is the /status body.
type StatusResponse struct {
	Status      string        `json:"status"`
	Environment string        `json:"environment"`
	Build       version.Build `json:"build"`
	API         APIStatus     `json:"api"`
}

// APIStatus reports the registration service check.
type APIStatus struct {
	Outcome       string `json:"outcome"`
	StatusCode    int    `json:"status_code"`
	Message       string `json:"message"`
	SourceIP      string `json:"source_ip,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(log *slog.Logger, checker APIChecker, environment string) *StatusHandler {
	return &StatusHandler{
		logger:      log.With(slog.String("handler", "status")),
		checker:     checker,
		environment: environment,
	}
}

// Register mounts GET /status on the Echo instance.
func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/status", h.Status)
}

// Status returns 200 when the registration service passes its self-test and
// 503 otherwise.
func (h *StatusHandler) Status(c echo.Context) error {
	if h.checker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "registration client not configured")
	}
	res := h.checker.CheckAPI(c.Request().Context())
	body := StatusResponse{
		Status:      "ok",
		Environment: h.environment,
		Build:       version.Get(),
		API: APIStatus{
			Outcome:    res.Outcome,
			StatusCode: res.StatusCode,
			Message:    res.StatusMessage,
		},
	}
	if res.Check != nil {
		body.API.SourceIP = res.Check.SourceIP
		body.API.ServerVersion = res.Check.ServerVersion
	}
	code := http.StatusOK
	if res.Outcome != registration.CheckPassed {
		body.Status = "degraded"
		code = http.StatusServiceUnavailable
		h.logger.Warn("registration check failed",
			slog.String("outcome", res.Outcome),
			slog.Int("status_code", res.StatusCode),
		)
	}
	return c.JSON(code, body)
}
