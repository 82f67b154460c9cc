package iam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/dbtest"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 24 * time.Hour
	alicePassword  = "correct-horse-battery"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc         *Service
	codec       *auth.Codec
	clock       *testClock
	principals  *repository.BunPrincipalRepository
	credentials *repository.BunCredentialRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.NewDB(t)

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	codec, err := auth.NewCodec(testKey, auth.WithClock(clock.Now))
	require.NoError(t, err)

	f := &fixture{
		codec:       codec,
		clock:       clock,
		principals:  repository.NewBunPrincipalRepository(db),
		credentials: repository.NewBunCredentialRepository(db),
	}
	f.svc, err = NewService(Dependencies{
		Principals:  f.principals,
		Credentials: f.credentials,
		Codec:       codec,
		Logger:      zerolog.Nop(),
	}, Config{AccessTTL: testAccessTTL, RefreshTTL: testRefreshTTL})
	require.NoError(t, err)
	return f
}

// interleavedLedger runs after once, right after the first FindByToken
// returns, to slot a competing operation between a lookup and its rotation.
type interleavedLedger struct {
	repository.CredentialRepository
	once  sync.Once
	after func()
}

func (l *interleavedLedger) FindByToken(ctx context.Context, token string) (*models.Credential, error) {
	record, err := l.CredentialRepository.FindByToken(ctx, token)
	l.once.Do(l.after)
	return record, err
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Email:    "Alice@Example.com",
		Password: alicePassword,
		Name:     "Alice",
		Surname:  "Smith",
		Phone:    "3001234567",
	}
}

func (f *fixture) register(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := f.svc.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	return tokens
}

func (f *fixture) gate(t *testing.T, token string) GateResult {
	t.Helper()
	res, err := f.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	return res
}

func bearer(token string) string { return auth.BearerPrefix + token }

func requireKind(t *testing.T, err error, kind Kind, status int) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *iam.Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind)
	require.Equal(t, status, e.Status)
	return e
}
