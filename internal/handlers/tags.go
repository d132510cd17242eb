package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/auth"
	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/tags"
)

// TagsHandler serves the tag catalog and per-contact tag assignment.
type TagsHandler struct {
	service *tags.Service
}

func NewTagsHandler(service *tags.Service) *TagsHandler {
	return &TagsHandler{service: service}
}

func (h *TagsHandler) Register(e *echo.Echo) {
	e.GET("/tags", h.List)
	e.POST("/tags", h.Upsert)
	e.GET("/contacts/:id/tags", h.ListForContact)
	e.POST("/contacts/:id/tags", h.Assign)
	e.DELETE("/contacts/:id/tags/:tag_id", h.Remove)
}

func (h *TagsHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *TagsHandler) Upsert(c echo.Context) error {
	var req tags.UpsertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.service.Upsert(c.Request().Context(), req)
	if err != nil {
		return tagError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *TagsHandler) ListForContact(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForContact(c.Request().Context(), id)
	if err != nil {
		return tagError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *TagsHandler) Assign(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	var req tags.AssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AssignedBy == "" {
		req.AssignedBy = auth.ActorFromContext(c)
	}
	if err := h.service.Assign(c.Request().Context(), id, req); err != nil {
		return tagError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TagsHandler) Remove(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	tagID := strings.TrimSpace(c.Param("tag_id"))
	if tagID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tag id is required")
	}
	if err := h.service.Remove(c.Request().Context(), id, tagID); err != nil {
		return tagError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func tagError(err error) error {
	switch {
	case errors.Is(err, tags.ErrContactNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	case errors.Is(err, tags.ErrNotAssigned):
		return echo.NewHTTPError(http.StatusNotFound, "tag is not assigned to the contact")
	case errors.Is(err, tags.ErrNameRequired),
		errors.Is(err, db.ErrInvalidUUID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
