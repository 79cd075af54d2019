package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/squad-roster/internal/auth"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/service"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	registration *service.RegistrationService
	team         *service.TeamService
	lineup       *service.LineupService

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithRegistrationService(registration *service.RegistrationService) *Handler {
	h.registration = registration
	return h
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithLineupService(lineup *service.LineupService) *Handler {
	h.lineup = lineup
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}

	sessions := e.Group("/sessions/:id", AuthMiddleware(auth.TokenTypeUser, auth.TokenTypeAdmin))

	sessions.POST("/register", h.Register)
	sessions.DELETE("/register", h.Unregister)
	sessions.PUT("/position", h.UpdateMyPosition)
	sessions.PUT("/positions", h.UpdatePositions)
	sessions.GET("/teams", h.GetTeams)
	sessions.PUT("/teams", h.UpdateTeams)
	sessions.GET("/lineup", h.GetLineup)
	sessions.PUT("/lineup", h.UpdateLineup)
	sessions.PUT("/editors", h.SetEditors)
	sessions.PUT("/attendance", h.MarkAttendance)
}

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Position string `json:"position" validate:"max=32"`
		TeamNo   int    `json:"team_no" validate:"min=0,max=4"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	caller := GetCallerFromContext(e)
	sessionID := e.Param("id")

	l.Info("registering", zap.String("session_id", sessionID), zap.Int("team_no", req.TeamNo))

	p, err := h.registration.Register(e.Request().Context(), &model.Registration{
		SessionID: sessionID,
		UserID:    caller.UserID,
		Position:  req.Position,
		TeamNo:    req.TeamNo,
	})
	if err != nil {
		l.Error("failed to register", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, p)
}

func (h *Handler) Unregister(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	caller := GetCallerFromContext(e)
	sessionID := e.Param("id")

	l.Info("unregistering", zap.String("session_id", sessionID))

	res, err := h.registration.Unregister(e.Request().Context(), sessionID, caller.UserID)
	if err != nil {
		l.Error("failed to unregister", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateMyPosition(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Position string `json:"position" validate:"max=32"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	caller := GetCallerFromContext(e)
	sessionID := e.Param("id")

	p, err := h.registration.UpdateMyPosition(e.Request().Context(), sessionID, caller.UserID, req.Position)
	if err != nil {
		l.Error("failed to update position", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePositions(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Positions []*model.PositionAssignment `json:"positions" validate:"required,dive,required"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	sessionID := e.Param("id")

	if err := h.team.UpdatePositions(e.Request().Context(), sessionID, GetCallerFromContext(e), req.Positions); err != nil {
		l.Error("failed to update positions", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) GetTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	sessionID := e.Param("id")

	view, err := h.team.GetTeams(e.Request().Context(), sessionID, GetCallerFromContext(e))
	if err != nil {
		l.Error("failed to get teams", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, view)
}

func (h *Handler) UpdateTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Assignments []*model.TeamAssignment `json:"assignments" validate:"required,dive,required"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	sessionID := e.Param("id")

	l.Info("updating teams", zap.String("session_id", sessionID), zap.Int("assignments", len(req.Assignments)))

	view, err := h.team.UpdateTeams(e.Request().Context(), sessionID, GetCallerFromContext(e), req.Assignments)
	if err != nil {
		l.Error("failed to update teams", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, view)
}

func (h *Handler) GetLineup(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	sessionID := e.Param("id")

	view, err := h.lineup.GetLineup(e.Request().Context(), sessionID, GetCallerFromContext(e))
	if err != nil {
		l.Error("failed to get lineup", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, view)
}

func (h *Handler) UpdateLineup(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TeamKey   string              `json:"team_key" validate:"required,max=2"`
		Formation string              `json:"formation" validate:"max=16"`
		Slots     []*model.LineupSlot `json:"slots" validate:"dive,required"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	sessionID := e.Param("id")

	l.Info("updating lineup", zap.String("session_id", sessionID), zap.String("team_key", req.TeamKey))

	err := h.lineup.UpdateLineup(e.Request().Context(), sessionID, GetCallerFromContext(e), &model.LineupUpdate{
		TeamKey:   req.TeamKey,
		Formation: req.Formation,
		Slots:     req.Slots,
	})
	if err != nil {
		l.Error("failed to update lineup", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) SetEditors(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		UserIDs []string `json:"user_ids" validate:"max=64,dive,max=64"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	sessionID := e.Param("id")

	editors, err := h.team.SetEditors(e.Request().Context(), sessionID, GetCallerFromContext(e), req.UserIDs)
	if err != nil {
		l.Error("failed to set editors", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string][]string{"editors": editors})
}

func (h *Handler) MarkAttendance(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		UserID string       `json:"user_id" validate:"required"`
		Status model.Status `json:"status" validate:"required,oneof=registered present late"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	sessionID := e.Param("id")

	p, err := h.team.MarkAttendance(e.Request().Context(), sessionID, GetCallerFromContext(e), req.UserID, req.Status)
	if err != nil {
		l.Error("failed to mark attendance", zap.String("session_id", sessionID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, p)
}

type errorResponse struct {
	Error *service.Error `json:"error"`
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := errorResponse{Error: err}

	switch err.Code {
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeConflict:
		return e.JSON(http.StatusConflict, response)
	case service.ErrorCodeBadRequest, service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
