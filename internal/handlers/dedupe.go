package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/auth"
	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/dedupe"
)

// DedupeHandler serves duplicate detection runs, suggestion review, and merges.
type DedupeHandler struct {
	service *dedupe.Service
}

func NewDedupeHandler(service *dedupe.Service) *DedupeHandler {
	return &DedupeHandler{service: service}
}

func (h *DedupeHandler) Register(e *echo.Echo) {
	e.POST("/dedupe/run", h.Run)
	e.GET("/dedupe/suggestions", h.ListSuggestions)
	e.POST("/dedupe/suggestions/:id/resolve", h.Resolve)
	e.POST("/dedupe/merge", h.Merge)
}

type runRequest struct {
	Limit int `json:"limit,omitempty"`
}

// Run godoc
// @Summary Run duplicate detection
// @Description Scan contacts and upsert duplicate suggestions
// @Tags dedupe
// @Param payload body runRequest false "Run options"
// @Success 200 {object} dedupe.RunResult
// @Failure 500 {object} ErrorResponse
// @Router /dedupe/run [post]
func (h *DedupeHandler) Run(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.Run(c.Request().Context(), req.Limit)
	if err != nil {
		return dedupeError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListSuggestions godoc
// @Summary List duplicate suggestions
// @Description List suggestions, optionally filtered by status
// @Tags dedupe
// @Param status query string false "open, accepted, or rejected"
// @Param limit query int false "Max rows"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /dedupe/suggestions [get]
func (h *DedupeHandler) ListSuggestions(c echo.Context) error {
	status := strings.TrimSpace(c.QueryParam("status"))
	limit := intQueryParam(c, "limit", 100)
	items, err := h.service.List(c.Request().Context(), status, limit)
	if err != nil {
		return dedupeError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// Resolve godoc
// @Summary Resolve a suggestion
// @Description Accept or reject a duplicate suggestion
// @Tags dedupe
// @Param id path string true "Suggestion ID"
// @Param payload body resolveRequest true "Resolution payload"
// @Success 200 {object} dedupe.Suggestion
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /dedupe/suggestions/{id}/resolve [post]
func (h *DedupeHandler) Resolve(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "suggestion id is required")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = auth.ActorFromContext(c)
	}
	item, err := h.service.Resolve(c.Request().Context(), id, req.Resolution, req.ResolvedBy)
	if err != nil {
		return dedupeError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Merge godoc
// @Summary Merge two contacts (admin only)
// @Description Merge the merged contact into the survivor and soft-delete the merged one
// @Tags dedupe
// @Param payload body dedupe.MergeRequest true "Merge payload"
// @Success 200 {object} dedupe.MergeResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /dedupe/merge [post]
func (h *DedupeHandler) Merge(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	var req dedupe.MergeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.MergedBy == "" {
		req.MergedBy = auth.ActorFromContext(c)
	}
	result, err := h.service.Merge(c.Request().Context(), req)
	if err != nil {
		return dedupeError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func dedupeError(err error) error {
	switch {
	case errors.Is(err, dedupe.ErrSuggestionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "suggestion not found")
	case errors.Is(err, dedupe.ErrContactNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	case errors.Is(err, dedupe.ErrInvalidResolution),
		errors.Is(err, dedupe.ErrInvalidStatus),
		errors.Is(err, dedupe.ErrSameContact),
		errors.Is(err, db.ErrInvalidUUID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
