package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/academico/academico/internal/platform/db"
	"github.com/academico/academico/internal/shared"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []shared.AuditEntry
	err     error
}

func (r *recordingAudit) Record(ctx context.Context, q db.Querier, entry shared.AuditEntry) (shared.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return shared.AuditLog{}, r.err
	}
	r.entries = append(r.entries, entry)
	return shared.AuditLog{ID: int64(len(r.entries)), Action: entry.Action, Entity: entry.Entity, EntityID: entry.EntityID}, nil
}

type recordingNotifier struct {
	logins []int64
	err    error
}

func (n *recordingNotifier) NotifyLogin(ctx context.Context, userID int64, at time.Time) error {
	n.logins = append(n.logins, userID)
	return n.err
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	resolverFixture
	audit    *recordingAudit
	notifier *recordingNotifier
	svc      *Service
}

func newServiceFixture(t *testing.T, users ...*User) serviceFixture {
	t.Helper()
	f := newResolverFixture(t, users...)
	audit := &recordingAudit{}
	notifier := &recordingNotifier{}
	svc := NewService(f.repo, f.tokens, f.cache, audit, discardLogger())
	svc.SetLastAccessNotifier(notifier)
	return serviceFixture{resolverFixture: f, audit: audit, notifier: notifier, svc: svc}
}

func TestLoginSuccess(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newServiceFixture(t, u)

	result, err := f.svc.Login(context.Background(), "docente", "secreto1")
	require.NoError(t, err)
	assert.Equal(t, "DOC", result.RoleCode)
	assert.Equal(t, []string{"ASISTENCIAS", "NOTAS"}, result.Permissions.Sorted())
	assert.Equal(t, []int64{10}, f.notifier.logins)

	auth, err := f.res.Resolve(context.Background(), result.Token)
	require.NoError(t, err)
	assert.True(t, auth.Permissions.Equal(result.Permissions))
}

func TestLoginFailures(t *testing.T) {
	active := docUser(10, "docente")
	active.PasswordHash = hashed(t, "secreto1")
	inactive := docUser(11, "baja")
	inactive.PasswordHash = hashed(t, "secreto1")
	inactive.Status = shared.UserStatusInactive
	noRole := docUser(12, "sinrol")
	noRole.PasswordHash = hashed(t, "secreto1")
	noRole.RoleID, noRole.RoleCode = nil, nil
	f := newServiceFixture(t, active, inactive, noRole)

	cases := []struct {
		name, username, password string
		want                     error
	}{
		{"unknown user", "nadie", "secreto1", shared.ErrInvalidCredentials},
		{"wrong password", "docente", "otra-clave", shared.ErrInvalidCredentials},
		{"inactive", "baja", "secreto1", shared.ErrUserInactive},
		{"no role", "sinrol", "secreto1", shared.ErrRoleNotAssigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tc.username, tc.password)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.notifier.logins)
}

func TestLoginNotifierFailureDoesNotBlockLogin(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newServiceFixture(t, u)
	f.notifier.err = errors.New("queue down")

	_, err := f.svc.Login(context.Background(), "docente", "secreto1")
	assert.NoError(t, err)
	assert.Empty(t, f.repo.touched)
}

func TestLoginUnknownUserStillComparesPassword(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newServiceFixture(t, u)
	var hashes [][]byte
	f.svc.compare = func(hash, password []byte) error {
		hashes = append(hashes, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}

	_, err := f.svc.Login(context.Background(), "nadie", "secreto1")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Len(t, hashes, 1)
	assert.Equal(t, dummyHash(), hashes[0])

	_, err = f.svc.Login(context.Background(), "docente", "otra-clave")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Len(t, hashes, 2)
}

func TestHashPasswordLengthLimit(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)

	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, shared.ErrValidation)

	// 37 two-byte runes: short in characters, over the limit in bytes.
	_, err = HashPassword(strings.Repeat("ñ", 37))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLoginWithoutNotifierTouchesDirectly(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newResolverFixture(t, u)
	svc := NewService(f.repo, f.tokens, f.cache, &recordingAudit{}, discardLogger())

	_, err := svc.Login(context.Background(), "docente", "secreto1")
	require.NoError(t, err)
	assert.Contains(t, f.repo.touched, int64(10))
}

func TestChangePasswordAudited(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newServiceFixture(t, u)
	auth := &shared.AuthContext{User: u.Principal(), RoleID: roleDocID, RoleCode: "DOC"}
	meta := shared.RequestMeta{IP: "10.0.0.1", UserAgent: "test"}

	err := f.svc.ChangePassword(context.Background(), auth, "secreto1", "nueva-clave", meta)
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("nueva-clave")))

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, shared.AuditActionChangePassword, entry.Action)
	assert.Equal(t, shared.AuditEntityUser, entry.Entity)
	assert.Equal(t, "10", *entry.EntityID)
	assert.Equal(t, int64(10), *entry.ActorID)
	assert.Equal(t, meta, entry.Request)
}

func TestChangePasswordRejectsWrongOldPassword(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newServiceFixture(t, u)
	auth := &shared.AuthContext{User: u.Principal()}

	err := f.svc.ChangePassword(context.Background(), auth, "incorrecta", "nueva-clave", shared.RequestMeta{})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Empty(t, f.audit.entries)
}

func TestChangePasswordAuditFailureFails(t *testing.T) {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	f := newServiceFixture(t, u)
	f.audit.err = errors.New("audit insert failed")
	auth := &shared.AuthContext{User: u.Principal()}

	err := f.svc.ChangePassword(context.Background(), auth, "secreto1", "nueva-clave", shared.RequestMeta{})
	assert.ErrorIs(t, err, f.audit.err)
}
