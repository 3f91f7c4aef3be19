package auth

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/notify"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/session"
	"github.com/hongminglow/kinder-admin/internal/storage"
	"github.com/hongminglow/kinder-admin/internal/storage/memory"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	sessions *session.RedisStore
	notifier *recordingNotifier
	tokens   *TokenManager
	metrics  *Metrics
	redis    *miniredis.Miniredis
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	_, err := permission.NewRegistry(store, nil).ReconcileRoles(ctx)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		sessions: session.NewRedisStore(client, "session", time.Hour, 24*time.Hour),
		notifier: &recordingNotifier{},
		tokens:   NewTokenManager(testSecret, "kinder-admin", time.Hour),
		metrics:  metrics,
		redis:    mr,
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.tokens.now = func() time.Time { return f.clock }
	f.svc = NewService(store, store, f.sessions, f.tokens, f.notifier, Options{
		AdminEmail: "admin@x.com",
		ConfirmURL: "http://localhost/auth/confirm/",
		Metrics:    metrics,
		Now:        func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) seedUser(t *testing.T, email, password string, confirmed bool) models.User {
	t.Helper()
	ctx := context.Background()
	role, err := f.store.FindDefaultRole(ctx)
	require.NoError(t, err)
	hash, err := hashPassword(password)
	require.NoError(t, err)
	user, err := f.store.CreateUser(ctx, models.User{
		Email:        email,
		Username:     email[:1] + "user",
		PasswordHash: hash,
		RoleID:       role.ID,
		Role:         role,
		Confirmed:    confirmed,
	})
	require.NoError(t, err)
	return user
}

func TestRegisterAssignsDefaultRoleAndSendsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{
		Email: "jane@x.com", Username: "jane", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.False(t, user.Confirmed)
	assert.Equal(t, models.UserRole, user.Role.Name)
	assert.Equal(t, models.Permission(0x07), user.Role.Permissions)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "jane@x.com", msgs[0].To)
	assert.Equal(t, notify.ConfirmTemplate, msgs[0].Template)

	id, err := f.tokens.Verify(msgs[0].Data["token"])
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, "http://localhost/auth/confirm/"+msgs[0].Data["token"], msgs[0].Data["confirm_url"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues("register", "ok")))
}

func TestRegisterAdminEmailGetsAdministrator(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "admin@x.com", Username: "boss", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AllPermissions, user.Role.Permissions)
	assert.True(t, permission.Has(&user.Role, models.ModerateComments))
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Email: "nope", Username: "jane", Password: "secret1"}},
		{"bad username", RegisterInput{Email: "j@x.com", Username: "1jane", Password: "secret1"}},
		{"short password", RegisterInput{Email: "j@x.com", Username: "jane", Password: "abc"}},
		{"mismatch", RegisterInput{Email: "j@x.com", Username: "jane", Password: "secret1", ConfirmPassword: "secret2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, f.notifier.messages())
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := RegisterInput{Email: "jane@x.com", Username: "jane", Password: "secret1"}

	_, err := f.svc.Register(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestRegisterSucceedsWhenNotifierFails(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "jane@x.com", Username: "jane", Password: "secret1",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedUser(t, "a@x.com", "secret", true)

	p, err := f.svc.Authenticate(ctx, "a@x.com", "secret", false)
	require.NoError(t, err)
	require.True(t, p.Authenticated())
	assert.Equal(t, seeded.ID, p.User.ID)
	assert.Equal(t, f.clock, p.User.LastSeen)
	require.NotNil(t, p.Session)

	resolved, err := f.svc.Resolve(ctx, p.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, resolved.User.ID)

	_, err = f.svc.Authenticate(ctx, "a@x.com", "wrong", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "b@x.com", "secret", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "A@X.COM", "secret", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "email lookup is case-sensitive")

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues("authenticate", "invalid_credentials")))
}

type lastSeenFailure struct {
	*memory.Store
}

func (lastSeenFailure) TouchLastSeen(context.Context, int64, time.Time) error {
	return storage.Unavailable("touch last seen", errors.New("connection reset"))
}

func TestAuthenticateLastSeenFailureOpensNoSession(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "a@x.com", "secret1", true)

	users := lastSeenFailure{Store: f.store}
	svc := NewService(users, f.store, f.sessions, f.tokens, f.notifier, Options{
		Now: func() time.Time { return f.clock },
	})

	p, err := svc.Authenticate(context.Background(), "a@x.com", "secret1", true)
	require.ErrorIs(t, err, storage.ErrUnavailable)
	assert.False(t, p.Authenticated())
	assert.Empty(t, f.redis.Keys())
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, "a@x.com", "secret", true)

	require.NoError(t, f.store.SetDeleted(ctx, user.ID, true))

	_, err := f.svc.Authenticate(ctx, "a@x.com", "secret", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "secret", true)

	p, err := f.svc.Authenticate(ctx, "a@x.com", "secret", true)
	require.NoError(t, err)
	assert.True(t, p.Session.Remember)

	require.NoError(t, f.svc.Logout(ctx, p.Session.ID))
	require.NoError(t, f.svc.Logout(ctx, p.Session.ID))

	resolved, err := f.svc.Resolve(ctx, p.Session.ID)
	require.NoError(t, err)
	assert.False(t, resolved.Authenticated())

	resolved, err = f.svc.Resolve(ctx, "")
	require.NoError(t, err)
	assert.False(t, resolved.Authenticated())
}

func TestTokenExpiry(t *testing.T) {
	f := newFixture(t)
	user := models.User{ID: 7}

	token, err := f.svc.IssueConfirmationToken(user)
	require.NoError(t, err)

	f.clock = f.clock.Add(3599 * time.Second)
	id, err := f.svc.VerifyConfirmationToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	f.clock = f.clock.Add(2 * time.Second)
	_, err = f.svc.VerifyConfirmationToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenRejectsTampering(t *testing.T) {
	f := newFixture(t)
	token, err := f.svc.IssueConfirmationToken(models.User{ID: 7})
	require.NoError(t, err)

	other := NewTokenManager("another-secret", "kinder-admin", time.Hour)
	other.now = f.tokens.now
	forged, err := other.Generate(models.User{ID: 7})
	require.NoError(t, err)

	for _, bad := range []string{"", "garbage", token + "x", forged} {
		_, err := f.svc.VerifyConfirmationToken(bad)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", bad)
	}

	zero, err := f.tokens.Generate(models.User{ID: 0})
	require.NoError(t, err)
	_, err = f.svc.VerifyConfirmationToken(zero)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "u@x.com", "secret", false)
	v := f.seedUser(t, "v@x.com", "secret", false)

	tokenU, err := f.svc.IssueConfirmationToken(u)
	require.NoError(t, err)

	err = f.svc.Confirm(ctx, Principal{User: &v}, tokenU)
	assert.ErrorIs(t, err, ErrTokenUserMismatch)
	stored, err := f.store.FindUserByID(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, stored.Confirmed)

	require.NoError(t, f.svc.Confirm(ctx, Principal{User: &u}, tokenU))
	assert.True(t, u.Confirmed)
	stored, err = f.store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)

	fresh, err := f.svc.IssueConfirmationToken(u)
	require.NoError(t, err)
	require.NoError(t, f.svc.Confirm(ctx, Principal{User: &u}, fresh))
	assert.True(t, u.Confirmed)

	assert.ErrorIs(t, f.svc.Confirm(ctx, Anonymous(), fresh), ErrAuthenticationRequired)
}

func TestConfirmExpiredLeavesUserUnconfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "u@x.com", "secret", false)

	token, err := f.svc.IssueConfirmationToken(u)
	require.NoError(t, err)
	f.clock = f.clock.Add(3601 * time.Second)

	assert.ErrorIs(t, f.svc.Confirm(ctx, Principal{User: &u}, token), ErrTokenExpired)
	stored, err := f.store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.Confirmed)
}

func TestResendConfirmation(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "u@x.com", "secret", false)

	require.NoError(t, f.svc.ResendConfirmation(context.Background(), Principal{User: &u}))
	require.Len(t, f.notifier.messages(), 1)

	assert.ErrorIs(t, f.svc.ResendConfirmation(context.Background(), Anonymous()), ErrAuthenticationRequired)

	f.notifier.err = errors.New("broker down")
	assert.Error(t, f.svc.ResendConfirmation(context.Background(), Principal{User: &u}))
}

func TestGateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unconfirmed := f.seedUser(t, "u@x.com", "secret", false)
	confirmed := f.seedUser(t, "c@x.com", "secret", true)

	gate, err := f.svc.GateRequest(ctx, Anonymous(), "/posts")
	require.NoError(t, err)
	assert.Equal(t, Continue, gate)

	gate, err = f.svc.GateRequest(ctx, Principal{User: &unconfirmed}, "/posts")
	require.NoError(t, err)
	assert.Equal(t, RedirectToUnconfirmed, gate)

	gate, err = f.svc.GateRequest(ctx, Principal{User: &unconfirmed}, "/auth/confirm")
	require.NoError(t, err)
	assert.Equal(t, Continue, gate)

	gate, err = f.svc.GateRequest(ctx, Principal{User: &confirmed}, "/posts")
	require.NoError(t, err)
	assert.Equal(t, Allow, gate)

	f.clock = f.clock.Add(time.Minute)
	_, err = f.svc.GateRequest(ctx, Principal{User: &unconfirmed}, "/auth/unconfirmed")
	require.NoError(t, err)
	stored, err := f.store.FindUserByID(ctx, unconfirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock, stored.LastSeen)
}

func TestRequirePermission(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "u@x.com", "secret", true)
	p := Principal{User: &user}

	assert.True(t, f.svc.RequirePermission(p, models.WriteArticles).Allowed())
	d := f.svc.RequirePermission(p, models.ModerateComments)
	assert.False(t, d.Allowed())
	assert.ErrorIs(t, d.Err(), ErrPermissionDenied)
	assert.False(t, f.svc.RequirePermission(Anonymous(), models.Follow).Allowed())
}

func TestPrincipalContext(t *testing.T) {
	assert.False(t, PrincipalFrom(context.Background()).Authenticated())

	user := models.User{ID: 3, Role: models.Role{Permissions: models.AllPermissions}}
	ctx := WithPrincipal(context.Background(), Principal{User: &user})
	p := PrincipalFrom(ctx)
	require.True(t, p.Authenticated())
	assert.True(t, p.Can(models.Administer))
}
