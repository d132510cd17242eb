package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/notes"
)

// NotesHandler serves per-contact notes.
type NotesHandler struct {
	service *notes.Service
}

func NewNotesHandler(service *notes.Service) *NotesHandler {
	return &NotesHandler{service: service}
}

func (h *NotesHandler) Register(e *echo.Echo) {
	e.GET("/contacts/:id/notes", h.ListForContact)
	e.POST("/contacts/:id/notes", h.Create)
}

func (h *NotesHandler) ListForContact(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForContact(c.Request().Context(), id)
	if err != nil {
		return noteError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *NotesHandler) Create(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	var req notes.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.service.Create(c.Request().Context(), id, req)
	if err != nil {
		return noteError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func noteError(err error) error {
	switch {
	case errors.Is(err, notes.ErrBodyRequired),
		errors.Is(err, db.ErrInvalidUUID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
