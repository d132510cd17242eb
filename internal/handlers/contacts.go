package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/contacts"
	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/dedupe"
	"github.com/rolodexhq/rolodex/internal/notes"
	"github.com/rolodexhq/rolodex/internal/tags"
)

// ContactsHandler serves contact CRUD, listing, and the detail bundle.
type ContactsHandler struct {
	service       *contacts.Service
	tagService    *tags.Service
	noteService   *notes.Service
	dedupeService *dedupe.Service
}

func NewContactsHandler(service *contacts.Service, tagService *tags.Service, noteService *notes.Service, dedupeService *dedupe.Service) *ContactsHandler {
	return &ContactsHandler{
		service:       service,
		tagService:    tagService,
		noteService:   noteService,
		dedupeService: dedupeService,
	}
}

func (h *ContactsHandler) Register(e *echo.Echo) {
	group := e.Group("/contacts")
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.GET("/:id/bundle", h.Bundle)
}

// ContactBundle is the full detail view: the contact plus every record that
// references it.
type ContactBundle struct {
	Contact      contacts.Contact     `json:"contact"`
	Tags         []tags.Tag           `json:"tags"`
	Notes        []notes.Note         `json:"notes"`
	Sources      []contacts.Source    `json:"sources"`
	Suggestions  []dedupe.Suggestion  `json:"duplicate_suggestions"`
	MergeHistory []dedupe.MergeRecord `json:"merge_history"`
}

// List godoc
// @Summary List contacts
// @Description List contacts with search, tag/source/state filters, sorting, and paging
// @Tags contacts
// @Param q query string false "Search term over name, email, phone, company"
// @Param tag query string false "Tag name filter"
// @Param source_type query string false "Source type filter"
// @Param state query string false "State filter"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} contacts.ListResult
// @Failure 500 {object} ErrorResponse
// @Router /contacts [get]
func (h *ContactsHandler) List(c echo.Context) error {
	params := contacts.ListParams{
		Query:      strings.TrimSpace(c.QueryParam("q")),
		Tag:        strings.TrimSpace(c.QueryParam("tag")),
		SourceType: strings.TrimSpace(c.QueryParam("source_type")),
		State:      strings.TrimSpace(c.QueryParam("state")),
		Sort:       strings.TrimSpace(c.QueryParam("sort")),
		Order:      strings.TrimSpace(c.QueryParam("order")),
		Page:       intQueryParam(c, "page", 1),
		PageSize:   intQueryParam(c, "page_size", 50),
	}
	result, err := h.service.List(c.Request().Context(), params)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// Create godoc
// @Summary Create contact
// @Description Create a contact record
// @Tags contacts
// @Param payload body contacts.CreateRequest true "Contact payload"
// @Success 201 {object} contacts.Contact
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /contacts [post]
func (h *ContactsHandler) Create(c echo.Context) error {
	var req contacts.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return contactError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// Get godoc
// @Summary Get contact
// @Description Get one contact by ID
// @Tags contacts
// @Param id path string true "Contact ID"
// @Success 200 {object} contacts.Contact
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /contacts/{id} [get]
func (h *ContactsHandler) Get(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return contactError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Update godoc
// @Summary Update contact
// @Description Patch contact fields; absent fields stay untouched
// @Tags contacts
// @Param id path string true "Contact ID"
// @Param payload body contacts.UpdateRequest true "Fields to change"
// @Success 200 {object} contacts.Contact
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /contacts/{id} [patch]
func (h *ContactsHandler) Update(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	var req contacts.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.service.Update(c.Request().Context(), id, req)
	if err != nil {
		return contactError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Delete godoc
// @Summary Delete contact (admin only)
// @Description Permanently delete a contact; dependent records are removed by cascade
// @Tags contacts
// @Param id path string true "Contact ID"
// @Success 204 "No Content"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /contacts/{id} [delete]
func (h *ContactsHandler) Delete(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	id, err := contactID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return contactError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Bundle godoc
// @Summary Get contact bundle
// @Description Contact plus its tags, notes, sources, duplicate suggestions, and merge history
// @Tags contacts
// @Param id path string true "Contact ID"
// @Success 200 {object} ContactBundle
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /contacts/{id}/bundle [get]
func (h *ContactsHandler) Bundle(c echo.Context) error {
	id, err := contactID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	contact, err := h.service.Get(ctx, id)
	if err != nil {
		return contactError(err)
	}
	contactTags, err := h.tagService.ListForContact(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	contactNotes, err := h.noteService.ListForContact(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	sources, err := h.service.ListSources(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	suggestions, err := h.dedupeService.ListForContact(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	history, err := h.dedupeService.HistoryForContact(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ContactBundle{
		Contact:      contact,
		Tags:         contactTags,
		Notes:        contactNotes,
		Sources:      sources,
		Suggestions:  suggestions,
		MergeHistory: history,
	})
}

func contactID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "contact id is required")
	}
	return id, nil
}

func contactError(err error) error {
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	case errors.Is(err, contacts.ErrFullNameRequired),
		errors.Is(err, contacts.ErrInvalidBirthday),
		errors.Is(err, db.ErrInvalidUUID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
