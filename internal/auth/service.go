// Package auth authenticates users, manages confirmation tokens and decides
// what a request may do before it reaches a handler.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/logger"
	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/notify"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/session"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

// DefaultAuthPathPrefix is where unconfirmed users may still go.
const DefaultAuthPathPrefix = "/auth/"

const minPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)

// Gate is the outcome of the pre-request check.
type Gate int

const (
	// Continue lets the request through without marking it confirmed.
	Continue Gate = iota
	// Allow lets a confirmed user through.
	Allow
	// RedirectToUnconfirmed sends the user to the unconfirmed notice.
	RedirectToUnconfirmed
)

func (g Gate) String() string {
	switch g {
	case Allow:
		return "allow"
	case RedirectToUnconfirmed:
		return "redirect_unconfirmed"
	default:
		return "continue"
	}
}

// RegisterInput is the validated shape of a sign-up form.
type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

// Options tunes a Service.
type Options struct {
	AdminEmail     string
	AuthPathPrefix string
	// ConfirmURL is prefixed to tokens in confirmation mail, e.g.
	// "https://example.com/auth/confirm/".
	ConfirmURL string
	Logger     *zap.Logger
	Metrics    *Metrics
	Now        func() time.Time
}

// Service implements login, confirmation and request gating.
type Service struct {
	users    storage.UserStore
	roles    storage.RoleStore
	sessions session.Store
	tokens   *TokenManager
	notifier notify.Notifier

	adminEmail string
	authPrefix string
	confirmURL string
	log        *zap.Logger
	metrics    *Metrics
	now        func() time.Time
}

// NewService wires the auth service to its collaborators.
func NewService(users storage.UserStore, roles storage.RoleStore, sessions session.Store, tokens *TokenManager, notifier notify.Notifier, opts Options) *Service {
	if opts.AuthPathPrefix == "" {
		opts.AuthPathPrefix = DefaultAuthPathPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(opts.Logger)
	}
	return &Service{
		users:      users,
		roles:      roles,
		sessions:   sessions,
		tokens:     tokens,
		notifier:   notifier,
		adminEmail: opts.AdminEmail,
		authPrefix: opts.AuthPathPrefix,
		confirmURL: opts.ConfirmURL,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
}

// Register creates an unconfirmed account and requests a confirmation mail.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateRegistration(in); err != nil {
		s.metrics.record("register", "invalid")
		return models.User{}, err
	}

	role, err := s.roleFor(ctx, in.Email)
	if err != nil {
		return models.User{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user, err := s.users.CreateUser(ctx, models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		RoleID:       role.ID,
		Role:         role,
		MemberSince:  now,
		LastSeen:     now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			s.metrics.record("register", "duplicate")
		}
		return models.User{}, err
	}

	if err := s.sendConfirmation(ctx, user); err != nil {
		s.log.Warn("confirmation mail not sent",
			zap.Int64("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
	s.metrics.record("register", "ok")
	return user, nil
}

func (s *Service) roleFor(ctx context.Context, email string) (models.Role, error) {
	if s.adminEmail != "" && email == s.adminEmail {
		role, err := s.roles.FindRoleByPermissions(ctx, models.AllPermissions)
		if err != nil {
			return models.Role{}, fmt.Errorf("administrator role: %w", err)
		}
		return role, nil
	}
	role, err := s.roles.FindDefaultRole(ctx)
	if err != nil {
		return models.Role{}, fmt.Errorf("default role: %w", err)
	}
	return role, nil
}

func validateRegistration(in RegisterInput) error {
	if in.Email == "" || len(in.Email) > 64 {
		return fmt.Errorf("%w: email must be between 1 and 64 characters", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if in.Username == "" || len(in.Username) > 64 {
		return fmt.Errorf("%w: username must be between 1 and 64 characters", ErrInvalidInput)
	}
	if !usernamePattern.MatchString(in.Username) {
		return fmt.Errorf("%w: usernames must have only letters, numbers, dots or underscores", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return fmt.Errorf("%w: passwords must match", ErrInvalidInput)
	}
	return nil
}

// Authenticate checks credentials and opens a session. Unknown email,
// deleted account and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string, remember bool) (Principal, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Principal{}, err
	}
	if err != nil || user.Deleted || user.PasswordHash == "" {
		burnPasswordCheck(password)
		return Principal{}, s.invalidCredentials(email)
	}
	if !checkPassword(user.PasswordHash, password) {
		return Principal{}, s.invalidCredentials(email)
	}

	// No session exists until last-seen is written.
	now := s.now()
	if err := s.users.TouchLastSeen(ctx, user.ID, now); err != nil {
		return Principal{}, err
	}
	user.LastSeen = now

	sess, err := s.sessions.Create(ctx, user.ID, remember)
	if err != nil {
		return Principal{}, fmt.Errorf("create session: %w", err)
	}

	s.metrics.record("authenticate", "ok")
	return Principal{Session: &sess, User: &user}, nil
}

func (s *Service) invalidCredentials(email string) error {
	s.metrics.record("authenticate", "invalid_credentials")
	s.log.Info("login rejected", zap.String("email", logger.MaskEmail(email)))
	return ErrInvalidCredentials
}

// Logout ends the session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Resolve turns a session id into a principal. Missing or expired sessions
// and deleted users resolve to an anonymous principal.
func (s *Service) Resolve(ctx context.Context, sessionID string) (Principal, error) {
	if sessionID == "" {
		return Anonymous(), nil
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return Anonymous(), nil
	}
	if err != nil {
		return Anonymous(), fmt.Errorf("load session: %w", err)
	}

	user, err := s.users.FindUserByID(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return Anonymous(), nil
	}
	if err != nil {
		return Anonymous(), err
	}
	if user.Deleted {
		return Anonymous(), nil
	}
	return Principal{Session: &sess, User: &user}, nil
}

// IssueConfirmationToken signs a token for user.
func (s *Service) IssueConfirmationToken(user models.User) (string, error) {
	return s.tokens.Generate(user)
}

// VerifyConfirmationToken returns the user id a token was issued for.
func (s *Service) VerifyConfirmationToken(token string) (int64, error) {
	return s.tokens.Verify(token)
}

// Confirm marks the principal's account as confirmed when token is valid
// and was issued for them. Confirming twice succeeds.
func (s *Service) Confirm(ctx context.Context, p Principal, token string) error {
	if !p.Authenticated() {
		return ErrAuthenticationRequired
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		s.metrics.record("confirm", outcome(err))
		return err
	}
	if id != p.User.ID {
		s.metrics.record("confirm", "mismatch")
		return ErrTokenUserMismatch
	}
	if p.User.Confirmed {
		return nil
	}
	if err := s.users.MarkConfirmed(ctx, id); err != nil {
		return err
	}
	p.User.Confirmed = true
	s.metrics.record("confirm", "ok")
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}

// ResendConfirmation issues a fresh token and requests another mail.
func (s *Service) ResendConfirmation(ctx context.Context, p Principal) error {
	if !p.Authenticated() {
		return ErrAuthenticationRequired
	}
	return s.sendConfirmation(ctx, *p.User)
}

func (s *Service) sendConfirmation(ctx context.Context, user models.User) error {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return fmt.Errorf("issue confirmation token: %w", err)
	}
	return s.notifier.Send(ctx, notify.Message{
		To:       user.Email,
		Subject:  "Confirm Your Account",
		Template: notify.ConfirmTemplate,
		Data: map[string]string{
			"username":    user.Username,
			"token":       token,
			"confirm_url": s.confirmURL + token,
		},
	})
}

// GateRequest runs before every request. It refreshes last-seen for signed-in
// users and keeps unconfirmed users inside the auth flow.
func (s *Service) GateRequest(ctx context.Context, p Principal, path string) (Gate, error) {
	if !p.Authenticated() {
		return Continue, nil
	}
	now := s.now()
	if err := s.users.TouchLastSeen(ctx, p.User.ID, now); err != nil {
		return Continue, err
	}
	p.User.LastSeen = now

	if p.User.Confirmed {
		return Allow, nil
	}
	if s.inAuthFlow(path) {
		return Continue, nil
	}
	return RedirectToUnconfirmed, nil
}

func (s *Service) inAuthFlow(path string) bool {
	return strings.HasPrefix(path, s.authPrefix) || path == strings.TrimSuffix(s.authPrefix, "/")
}

// RequirePermission checks the principal's role against perm.
func (s *Service) RequirePermission(p Principal, perm models.Permission) permission.Decision {
	d := permission.Require(p.Role(), perm)
	if !d.Allowed() {
		s.metrics.record("permission", "denied")
	}
	return d
}
