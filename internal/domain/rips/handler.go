package rips

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rueisp/odontologia/internal/platform/auth"
	"github.com/rueisp/odontologia/internal/platform/db"
)

// Generator is the part of Service the handler needs.
type Generator interface {
	Generate(ctx context.Context, start, end string) (*Archive, error)
}

type Handler struct {
	svc    Generator
	logger zerolog.Logger
}

func NewHandler(svc Generator, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/rips", auth.RequireRole("admin", "billing"))
	g.POST("/export", h.Export)
}

type exportRequest struct {
	StartDate string `json:"start_date" form:"start_date" query:"start_date"`
	EndDate   string `json:"end_date" form:"end_date" query:"end_date"`
}

type emptyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Export builds the bundle for the posted window and returns it as a zip
// attachment. Every query runs inside one read-only snapshot when the
// request carries a tenant connection.
func (h *Handler) Export(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if snapCtx, tx, err := db.WithTx(ctx); err == nil {
		defer tx.Rollback(ctx)
		ctx = snapCtx
	} else if !errors.Is(err, db.ErrNoConn) {
		h.logger.Error().Err(err).Msg("rips: snapshot not started")
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}

	archive, err := h.svc.Generate(ctx, req.StartDate, req.EndDate)
	switch {
	case err == nil:
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEmptyResult):
		return c.JSON(http.StatusOK, emptyResponse{Status: "empty", Message: err.Error()})
	default:
		h.logger.Error().Err(err).
			Str("start_date", req.StartDate).
			Str("end_date", req.EndDate).
			Str("user_id", auth.UserIDFromContext(ctx)).
			Msg("rips: export failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", archive.Name))
	return c.Blob(http.StatusOK, "application/zip", archive.Data)
}
