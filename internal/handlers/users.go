package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/auth"
	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/users"
)

type UsersHandler struct {
	service *users.Service
	logger  *slog.Logger
}

func NewUsersHandler(log *slog.Logger, service *users.Service) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	userGroup := e.Group("/users")
	userGroup.GET("/me", h.GetMe)
	userGroup.PUT("/me/password", h.UpdateMyPassword)
	userGroup.GET("", h.ListUsers)
	userGroup.GET("/:id", h.GetUser)
	userGroup.PUT("/:id", h.UpdateUser)
	userGroup.PUT("/:id/password", h.ResetUserPassword)
	userGroup.POST("", h.CreateUser)
}

// GetMe godoc
// @Summary Get current account
// @Description Get the account behind the presented token
// @Tags users
// @Success 200 {object} users.Account
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/me [get]
func (h *UsersHandler) GetMe(c echo.Context) error {
	actorID, err := h.requireAccountID(c)
	if err != nil {
		return err
	}
	account, err := h.service.Get(c.Request().Context(), actorID)
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusOK, account)
}

// UpdateMyPassword godoc
// @Summary Update current account password
// @Description Update the password after checking the current one
// @Tags users
// @Param payload body users.UpdatePasswordRequest true "Password payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/me/password [put]
func (h *UsersHandler) UpdateMyPassword(c echo.Context) error {
	actorID, err := h.requireAccountID(c)
	if err != nil {
		return err
	}
	var req users.UpdatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.UpdatePassword(c.Request().Context(), actorID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, users.ErrInvalidPassword) {
			return echo.NewHTTPError(http.StatusBadRequest, "current password is incorrect")
		}
		return userError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers godoc
// @Summary List accounts (admin only)
// @Description List operator and admin accounts
// @Tags users
// @Success 200 {object} users.ListResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (h *UsersHandler) ListUsers(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusOK, users.ListResponse{Items: items})
}

// GetUser godoc
// @Summary Get account by ID
// @Description Get account details (self or admin only)
// @Tags users
// @Param id path string true "Account ID"
// @Success 200 {object} users.Account
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UsersHandler) GetUser(c echo.Context) error {
	actorID, err := h.requireAccountID(c)
	if err != nil {
		return err
	}
	targetID := strings.TrimSpace(c.Param("id"))
	if targetID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account id is required")
	}
	if targetID != actorID {
		if err := requireAdmin(c); err != nil {
			return err
		}
	}
	account, err := h.service.Get(c.Request().Context(), targetID)
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusOK, account)
}

// UpdateUser godoc
// @Summary Update account (admin only)
// @Description Update account role, email, or active flag
// @Tags users
// @Param id path string true "Account ID"
// @Param payload body users.UpdateRequest true "Account update payload"
// @Success 200 {object} users.Account
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id} [put]
func (h *UsersHandler) UpdateUser(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	targetID := strings.TrimSpace(c.Param("id"))
	if targetID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account id is required")
	}
	var req users.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	account, err := h.service.Update(c.Request().Context(), targetID, req)
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusOK, account)
}

// ResetUserPassword godoc
// @Summary Reset account password (admin only)
// @Description Set a new password without the current one
// @Tags users
// @Param id path string true "Account ID"
// @Param payload body users.ResetPasswordRequest true "Password payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id}/password [put]
func (h *UsersHandler) ResetUserPassword(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	targetID := strings.TrimSpace(c.Param("id"))
	if targetID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account id is required")
	}
	var req users.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.ResetPassword(c.Request().Context(), targetID, req.NewPassword); err != nil {
		return userError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateUser godoc
// @Summary Create account (admin only)
// @Description Create an operator or admin account
// @Tags users
// @Param payload body users.CreateRequest true "Account payload"
// @Success 201 {object} users.Account
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users [post]
func (h *UsersHandler) CreateUser(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	var req users.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	account, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusCreated, account)
}

func (h *UsersHandler) requireAccountID(c echo.Context) (string, error) {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return "", err
	}
	return accountID, nil
}

func userError(err error) error {
	switch {
	case errors.Is(err, users.ErrAccountNotFound), errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	case errors.Is(err, users.ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, users.ErrUsernameRequired),
		errors.Is(err, users.ErrPasswordRequired),
		errors.Is(err, db.ErrInvalidUUID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
