package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	attempts []string
	fetches  []string
}

func (o *recordingObserver) AuthAttempt(validator, outcome string) {
	o.attempts = append(o.attempts, validator+":"+outcome)
}

func (o *recordingObserver) KeyFetch(outcome string) {
	o.fetches = append(o.fetches, outcome)
}

type stubValidator struct {
	name string
	id   *Identity
	err  error
	hits int
}

func (s *stubValidator) Name() string { return s.name }

func (s *stubValidator) Validate(context.Context, *http.Request) (*Identity, error) {
	s.hits++
	return s.id, s.err
}

func TestChain_NopAcceptsAnonymous(t *testing.T) {
	chain := NewChain([]Validator{NopValidator{}}, nil, nil)

	id, err := chain.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/sse", nil))
	require.NoError(t, err)
	assert.Equal(t, "nop", id.Principal)
	assert.False(t, id.VerifyCert)
	assert.Empty(t, id.Headers(), "nop credential must not be forwarded")
}

func TestChain_FailsClosedWithoutCredentials(t *testing.T) {
	obs := &recordingObserver{}
	chain := NewChain([]Validator{
		NewJWTValidator("https://aap.example.com", false),
		NewTokenValidator("https://aap.example.com", false),
	}, nil, obs)

	id, err := chain.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/sse", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthenticationFailed))
	assert.Nil(t, id)
	assert.Equal(t, []string{"chain:no_credentials"}, obs.attempts)
}

func TestChain_FirstIdentityWins(t *testing.T) {
	skip := &stubValidator{name: "skip"}
	first := &stubValidator{name: "first", id: &Identity{Principal: "first"}}
	second := &stubValidator{name: "second", id: &Identity{Principal: "second"}}
	chain := NewChain([]Validator{skip, first, second}, nil, nil)

	id, err := chain.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "first", id.Principal)
	assert.Equal(t, 1, skip.hits)
	assert.Equal(t, 0, second.hits)
	assert.Equal(t, []string{"skip", "first", "second"}, chain.Validators())
}

func TestChain_ValidatorErrorStopsChain(t *testing.T) {
	bad := &stubValidator{name: "bad", err: errors.New("bad credential")}
	nop := &stubValidator{name: "nop", id: &Identity{Principal: "nop"}}
	chain := NewChain([]Validator{bad, nop}, nil, nil)

	_, err := chain.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "bad credential")
	assert.Equal(t, 0, nop.hits)
}

func TestTokenValidator(t *testing.T) {
	v := NewTokenValidator("https://gateway.example.com", true)

	tests := []struct {
		name    string
		header  string
		wantID  bool
		wantErr bool
	}{
		{"absent", "", false, false},
		{"bearer", "Bearer abc123", true, false},
		{"lowercase scheme", "bearer abc123", true, false},
		{"empty token", "Bearer ", false, true},
		{"basic auth", "Basic dXNlcjpwYXNz", false, true},
		{"no scheme", "abc123", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/sse", nil)
			if tt.header != "" {
				r.Header.Set(TokenHeaderName, tt.header)
			}
			id, err := v.Validate(context.Background(), r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if !tt.wantID {
				assert.Nil(t, id)
				return
			}
			require.NotNil(t, id)
			assert.Equal(t, "https://gateway.example.com", id.ServerURL)
			assert.Equal(t, map[string]string{"Authorization": tt.header}, id.Headers())
			assert.True(t, id.VerifyCert)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	assert.Nil(t, IdentityFromContext(context.Background()))

	id := &Identity{Principal: "alice"}
	ctx := WithIdentity(context.Background(), id)
	assert.Same(t, id, IdentityFromContext(ctx))

	var nilID *Identity
	assert.Empty(t, nilID.Headers())
}
