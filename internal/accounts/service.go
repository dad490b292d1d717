package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/auth"
	"github.com/serataapp/serata-backend/pkg/auth/session"
	"github.com/serataapp/serata-backend/pkg/config"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/security"
)

// sessionStore is the slice of the session manager the service needs.
// *session.Manager satisfies it.
type sessionStore interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// loginLimiter is the rate-limit surface of the Redis client.
type loginLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// profileLookup resolves the promoter profile linked to an account, so
// promoter logins carry their profile id in the JWT.
type profileLookup interface {
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*models.PromoterProfile, error)
}

// Service handles account registration and the login/refresh/logout
// cycle: Argon2id verification, HS256 access tokens, and Redis-backed
// refresh sessions.
type Service struct {
	repo     Repository
	sessions sessionStore
	limiter  loginLimiter
	profiles profileLookup
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	rateCfg  config.AuthRateLimitConfig
	logg     *logger.Logger
}

// NewService wires the account service. limiter and profiles may be nil
// (no rate limiting, no promoter linking).
func NewService(repo Repository, sessions sessionStore, limiter loginLimiter, profiles profileLookup, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, rateCfg config.AuthRateLimitConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil || sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accounts: missing dependency")
	}
	return &Service{
		repo:     repo,
		sessions: sessions,
		limiter:  limiter,
		profiles: profiles,
		jwtCfg:   jwtCfg,
		pwCfg:    pwCfg,
		rateCfg:  rateCfg,
		logg:     logg,
	}, nil
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      enums.AccountRole
	TenantID  *uuid.UUID
}

const minPasswordLength = 8

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account role")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         input.Role,
		TenantID:     input.TenantID,
		IsActive:     true,
	}
	if trimmed := strings.TrimSpace(input.Phone); trimmed != "" {
		account.Phone = &trimmed
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating account")
	}
	return account, nil
}

// TokenPair is what a successful login or refresh hands the client. The
// AccessID doubles as the JWT jti and the Redis session key.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessID     string
}

// Login verifies credentials and opens a session. Both the unknown-email
// and wrong-password paths return the same error.
func (s *Service) Login(ctx context.Context, email, password, remoteIP string) (*models.Account, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	if err := s.allowLogin(ctx, email, remoteIP); err != nil {
		return nil, nil, err
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading account")
	}
	if account == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid email or password")
	}
	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid email or password")
	}
	if !account.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	pair, err := s.openSession(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.TouchLastLogin(ctx, account.ID, time.Now().UTC()); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithAccountID(ctx, account.ID.String()), "recording last login", err)
	}
	return account, pair, nil
}

// Refresh rotates the refresh token and mints a fresh access token for
// the same account.
func (s *Service) Refresh(ctx context.Context, accountID uuid.UUID, oldAccessID, refreshToken string) (*TokenPair, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading account")
	}
	if account == nil || !account.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session is no longer valid")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, oldAccessID, refreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthenticated, err, "rotating session")
	}
	accessToken, err := s.mintAccessToken(ctx, account, newAccessID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefresh, AccessID: newAccessID}, nil
}

// Logout revokes the refresh session behind the access id.
func (s *Service) Logout(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	return nil
}

// ChangePassword swaps the hash after re-verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error {
	if len(next) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading account")
	}
	if account == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	ok, err := security.VerifyPassword(current, account.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthenticated, "current password does not match")
	}
	hash, err := security.HashPassword(next, s.pwCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}
	if err := s.repo.Update(ctx, accountID, map[string]interface{}{"password_hash": hash}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating password")
	}
	return nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return account, nil
}

// SetActive enables or disables a login. Disabling does not revoke live
// sessions here; the refresh rotation rejects disabled accounts.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.Update(ctx, id, map[string]interface{}{"is_active": active}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating account")
	}
	return nil
}

func (s *Service) allowLogin(ctx context.Context, email, remoteIP string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "login:email:"+email,
		int64(s.rateCfg.LoginEmailLimit), s.rateCfg.LoginWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking login rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, slow down")
	}
	if remoteIP != "" {
		allowed, _, err = s.limiter.FixedWindowAllow(ctx, "login:ip:"+remoteIP,
			int64(s.rateCfg.LoginIPLimit), s.rateCfg.LoginWindow)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking login rate limit")
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, slow down")
		}
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, account *models.Account) (*TokenPair, error) {
	accessID := session.NewAccessID()
	accessToken, err := s.mintAccessToken(ctx, account, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "opening session")
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, AccessID: accessID}, nil
}

func (s *Service) mintAccessToken(ctx context.Context, account *models.Account, accessID string) (string, error) {
	payload := auth.AccessTokenPayload{
		AccountID: account.ID,
		TenantID:  account.TenantID,
		Role:      account.Role,
		JTI:       accessID,
	}
	if s.profiles != nil && account.Role == enums.AccountRolePromoter {
		profile, err := s.profiles.GetByAccount(ctx, account.ID)
		if err != nil {
			return "", err
		}
		if profile != nil {
			payload.PromoterProfileID = &profile.ID
		}
	}
	token, err := auth.MintAccessToken(s.jwtCfg, time.Now().UTC(), payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return token, nil
}
