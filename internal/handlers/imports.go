package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/auth"
	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/importer"
)

// ImportsHandler serves CSV and vCard preview/commit plus import batch history.
type ImportsHandler struct {
	service *importer.Service
}

func NewImportsHandler(service *importer.Service) *ImportsHandler {
	return &ImportsHandler{service: service}
}

func (h *ImportsHandler) Register(e *echo.Echo) {
	e.POST("/imports/csv/preview", h.CSVPreview)
	e.POST("/imports/csv/commit", h.CSVCommit)
	e.POST("/imports/vcard/preview", h.VCardPreview)
	e.POST("/imports/vcard/commit", h.VCardCommit)
	e.GET("/imports/batches", h.ListBatches)
	e.GET("/imports/batches/:id", h.GetBatch)
}

// CSVPreview godoc
// @Summary Preview a CSV import
// @Description Parse a CSV sample, profile columns, and guess a field mapping
// @Tags imports
// @Param payload body importer.PreviewRequest true "CSV payload"
// @Success 200 {object} importer.CSVPreview
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /imports/csv/preview [post]
func (h *ImportsHandler) CSVPreview(c echo.Context) error {
	var req importer.PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	preview, err := h.service.CSVPreview(c.Request().Context(), req)
	if err != nil {
		return importError(err)
	}
	return c.JSON(http.StatusOK, preview)
}

// CSVCommit godoc
// @Summary Commit a CSV import
// @Description Insert contacts from CSV rows under a new import batch
// @Tags imports
// @Param payload body importer.CommitRequest true "CSV payload with mapping"
// @Success 201 {object} importer.CommitResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /imports/csv/commit [post]
func (h *ImportsHandler) CSVCommit(c echo.Context) error {
	var req importer.CommitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CreatedBy == "" {
		req.CreatedBy = auth.ActorFromContext(c)
	}
	result, err := h.service.CSVCommit(c.Request().Context(), req)
	if err != nil {
		return importError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// VCardPreview godoc
// @Summary Preview a vCard import
// @Description Parse vCards and return a sample of extracted contacts
// @Tags imports
// @Param payload body importer.PreviewRequest true "vCard payload"
// @Success 200 {object} importer.VCardPreview
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /imports/vcard/preview [post]
func (h *ImportsHandler) VCardPreview(c echo.Context) error {
	var req importer.PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	preview, err := h.service.VCardPreview(c.Request().Context(), req)
	if err != nil {
		return importError(err)
	}
	return c.JSON(http.StatusOK, preview)
}

// VCardCommit godoc
// @Summary Commit a vCard import
// @Description Insert contacts from vCards under a new import batch
// @Tags imports
// @Param payload body importer.CommitRequest true "vCard payload"
// @Success 201 {object} importer.CommitResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /imports/vcard/commit [post]
func (h *ImportsHandler) VCardCommit(c echo.Context) error {
	var req importer.CommitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CreatedBy == "" {
		req.CreatedBy = auth.ActorFromContext(c)
	}
	result, err := h.service.VCardCommit(c.Request().Context(), req)
	if err != nil {
		return importError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// ListBatches godoc
// @Summary List import batches
// @Description List recent import batches, newest first
// @Tags imports
// @Success 200 {object} map[string]any
// @Failure 500 {object} ErrorResponse
// @Router /imports/batches [get]
func (h *ImportsHandler) ListBatches(c echo.Context) error {
	items, err := h.service.ListBatches(c.Request().Context())
	if err != nil {
		return importError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// GetBatch godoc
// @Summary Get import batch
// @Description Get one import batch with status and progress counts
// @Tags imports
// @Param id path string true "Batch ID"
// @Success 200 {object} importer.Batch
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /imports/batches/{id} [get]
func (h *ImportsHandler) GetBatch(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "batch id is required")
	}
	batch, err := h.service.GetBatch(c.Request().Context(), id)
	if err != nil {
		return importError(err)
	}
	return c.JSON(http.StatusOK, batch)
}

func importError(err error) error {
	switch {
	case errors.Is(err, importer.ErrBatchNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "import batch not found")
	case errors.Is(err, importer.ErrCSVInputRequired),
		errors.Is(err, importer.ErrVCardInputRequired),
		errors.Is(err, importer.ErrSourceLabelRequired),
		errors.Is(err, importer.ErrMappingRequired),
		errors.Is(err, importer.ErrUnknownMappingHeader),
		errors.Is(err, db.ErrInvalidUUID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
