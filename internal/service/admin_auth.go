package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/retroarcade/hiscore/internal/auth"
	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// LoginLockout locks an email out after MaxFailures failed logins within Window.
type LoginLockout struct {
	MaxFailures int
	Window      time.Duration
}

// DefaultLoginLockout allows five failures per fifteen minutes.
var DefaultLoginLockout = LoginLockout{MaxFailures: 5, Window: 15 * time.Minute}

// AdminAuthService handles admin login and membership checks.
type AdminAuthService struct {
	db       repository.DBTX
	admins   repository.AdminRepository
	attempts repository.LoginAttemptRepository
	jwtMgr   *auth.JWTManager
	lockout  LoginLockout
	logger   *slog.Logger

	now func() time.Time
}

// NewAdminAuthService creates a new AdminAuthService.
func NewAdminAuthService(
	db repository.DBTX,
	admins repository.AdminRepository,
	attempts repository.LoginAttemptRepository,
	jwtMgr *auth.JWTManager,
	lockout LoginLockout,
	logger *slog.Logger,
) *AdminAuthService {
	if lockout.MaxFailures <= 0 || lockout.Window <= 0 {
		lockout = DefaultLoginLockout
	}
	return &AdminAuthService{
		db:       db,
		admins:   admins,
		attempts: attempts,
		jwtMgr:   jwtMgr,
		lockout:  lockout,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginInput holds admin credentials. IP is filled in from the request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IP       string `json:"-"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AdminID   uuid.UUID `json:"admin_id"`
	Email     string    `json:"email"`
	Name      string    `json:"display_name"`
}

// Login verifies credentials and issues an admin-realm token. Once an email
// collects too many failures inside the lockout window every attempt is
// refused with ACCOUNT_LOCKED, even with the right password.
func (s *AdminAuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := domain.ValidateEmail(email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if in.Password == "" {
		return nil, domain.ErrValidation("password is required")
	}

	failures, err := s.attempts.CountFailures(ctx, s.db, email, s.now().Add(-s.lockout.Window))
	if err != nil {
		return nil, domain.ErrInternal("check login lockout", err)
	}
	if failures >= s.lockout.MaxFailures {
		s.logger.Warn("admin login refused, account locked", "ip", in.IP, "failures", failures)
		return nil, domain.ErrAccountLocked("too many failed login attempts, try again later")
	}

	admin, err := s.admins.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, domain.ErrInternal("find admin", err)
	}
	if admin == nil || !admin.Active {
		s.recordAttempt(ctx, email, in.IP, false)
		return nil, domain.ErrUnauthorized("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(in.Password)); err != nil {
		s.logger.Warn("admin login failed", "admin_id", admin.ID, "ip", in.IP)
		s.recordAttempt(ctx, email, in.IP, false)
		return nil, domain.ErrUnauthorized("invalid email or password")
	}
	s.recordAttempt(ctx, email, in.IP, true)

	token, exp, err := s.jwtMgr.GenerateToken(auth.RealmAdmin, admin.ID, admin.Email)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	s.logger.Info("admin logged in", "admin_id", admin.ID)
	return &LoginResult{Token: token, ExpiresAt: exp, AdminID: admin.ID, Email: admin.Email, Name: admin.DisplayName}, nil
}

func (s *AdminAuthService) recordAttempt(ctx context.Context, email, ip string, success bool) {
	if err := s.attempts.Record(ctx, s.db, email, ip, success); err != nil {
		s.logger.Error("record login attempt", "error", err)
	}
}

// PruneLoginAttempts deletes attempts older than maxAge and returns how many went.
func (s *AdminAuthService) PruneLoginAttempts(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge < s.lockout.Window {
		maxAge = s.lockout.Window
	}
	return s.attempts.DeleteBefore(ctx, s.db, s.now().Add(-maxAge))
}

// IsAdmin reports whether id is an active admin. It backs the admin middleware.
func (s *AdminAuthService) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.admins.IsMember(ctx, s.db, id)
}

// EnsureAdmin creates or refreshes an admin account, used to bootstrap the
// first admin from configuration.
func (s *AdminAuthService) EnsureAdmin(ctx context.Context, email, password, displayName string) (*domain.Admin, error) {
	if err := domain.ValidateEmail(email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(password) < 12 {
		return nil, domain.ErrValidation("admin password must be at least 12 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}
	admin := &domain.Admin{Email: strings.ToLower(email), PasswordHash: string(hash), DisplayName: displayName}
	if err := s.admins.Upsert(ctx, s.db, admin); err != nil {
		return nil, domain.ErrInternal("save admin", err)
	}
	s.logger.Info("admin account ensured", "admin_id", admin.ID)
	return admin, nil
}
