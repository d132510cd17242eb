// Package users manages operator and admin accounts.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/rolodexhq/rolodex/internal/db"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
)

const accountColumns = `id, username, email, password_hash, role, is_active,
	last_login_at, created_at, updated_at`

// Service manages account records and credentials.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "users")),
	}
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, accountID string) (Account, error) {
	pgID, err := db.ParseUUID(accountID)
	if err != nil {
		return Account{}, err
	}
	account, _, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return account, err
}

// Login authenticates by username or email plus password, and touches
// last_login_at on success.
func (s *Service) Login(ctx context.Context, identity, password string) (Account, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || strings.TrimSpace(password) == "" {
		return Account{}, ErrInvalidCredentials
	}

	account, hash, err := scanAccount(s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1 OR email = $1`, identity))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if !account.IsActive {
		return Account{}, ErrInactiveAccount
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}

	pgID, err := db.ParseUUID(account.ID)
	if err != nil {
		return Account{}, err
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_login_at = now() WHERE id = $1`, pgID); err != nil {
		s.logger.Warn("touch last login failed", slog.Any("error", err))
	}
	return account, nil
}

// List returns every account, newest first.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Account, 0)
	for rows.Next() {
		account, _, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, account)
	}
	return items, rows.Err()
}

// Create adds a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Account, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return Account{}, ErrUsernameRequired
	}
	password := strings.TrimSpace(req.Password)
	if password == "" {
		return Account{}, ErrPasswordRequired
	}
	role, err := normalizeRole(req.Role)
	if err != nil {
		return Account{}, err
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account, _, err := scanAccount(s.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash, role, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+accountColumns,
		username, db.Text(strings.TrimSpace(req.Email)), string(hashed), role, isActive))
	if db.IsUniqueViolation(err) {
		return Account{}, ErrUsernameTaken
	}
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account created",
		slog.String("username", username), slog.String("role", role))
	return account, nil
}

// Update changes email, role, or active state. Nil fields stay untouched.
func (s *Service) Update(ctx context.Context, accountID string, req UpdateRequest) (Account, error) {
	pgID, err := db.ParseUUID(accountID)
	if err != nil {
		return Account{}, err
	}
	existing, err := s.Get(ctx, accountID)
	if err != nil {
		return Account{}, err
	}

	email := existing.Email
	if req.Email != nil {
		email = strings.TrimSpace(*req.Email)
	}
	role := existing.Role
	if req.Role != nil {
		role, err = normalizeRole(*req.Role)
		if err != nil {
			return Account{}, err
		}
	}
	isActive := existing.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	account, _, err := scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET email = $2, role = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		pgID, db.Text(email), role, isActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return account, err
}

// UpdatePassword changes the password after verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrPasswordRequired
	}
	pgID, err := db.ParseUUID(accountID)
	if err != nil {
		return err
	}

	var hash string
	err = s.pool.QueryRow(ctx,
		`SELECT password_hash FROM accounts WHERE id = $1`, pgID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)) != nil {
		return ErrInvalidPassword
	}
	return s.setPassword(ctx, pgID, newPassword)
}

// ResetPassword sets a new password without requiring the current one.
func (s *Service) ResetPassword(ctx context.Context, accountID, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrPasswordRequired
	}
	pgID, err := db.ParseUUID(accountID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, pgID, newPassword)
}

// EnsureAdmin creates the bootstrap admin account when no account with the
// given username exists. Called at startup with the configured credentials.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err := s.Create(ctx, CreateRequest{
		Username: username,
		Password: password,
		Role:     RoleAdmin,
	})
	if errors.Is(err, ErrUsernameTaken) {
		return nil
	}
	if err == nil {
		s.logger.Info("bootstrap admin account created", slog.String("username", username))
	}
	return err
}

func (s *Service) setPassword(ctx context.Context, pgID pgtype.UUID, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = now()
		WHERE id = $1`, pgID, string(hashed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func normalizeRole(raw string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(raw))
	if role == "" {
		return RoleOperator, nil
	}
	if role != RoleAdmin && role != RoleOperator {
		return "", fmt.Errorf("invalid role: %s", raw)
	}
	return role, nil
}

// IsAdmin reports whether the role string carries admin rights.
func IsAdmin(role string) bool {
	return strings.EqualFold(role, RoleAdmin)
}

func scanAccount(row pgx.Row) (Account, string, error) {
	var (
		account              Account
		id                   pgtype.UUID
		email                pgtype.Text
		hash                 string
		lastLogin            pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &account.Username, &email, &hash, &account.Role,
		&account.IsActive, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		return Account{}, "", err
	}
	account.ID = db.UUIDString(id)
	account.Email = db.TextValue(email)
	account.LastLoginAt = db.TimeFromPg(lastLogin)
	account.CreatedAt = db.TimeFromPg(createdAt)
	account.UpdatedAt = db.TimeFromPg(updatedAt)
	return account, hash, nil
}
