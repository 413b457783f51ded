package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"prodfetch/pkg/config"
	"prodfetch/pkg/logger"
)

func TestHeaders(t *testing.T) {
	h := Headers("user", "p@ss:word")
	require.NotNil(t, h)

	value := h.Get("Authorization")
	require.True(t, strings.HasPrefix(value, "Basic "))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "Basic "))
	require.NoError(t, err)
	assert.Equal(t, "user:p@ss:word", string(decoded))
}

func TestHeadersMissingCredentials(t *testing.T) {
	assert.Nil(t, Headers("", "secret"))
	assert.Nil(t, Headers("user", ""))
	assert.Nil(t, Headers("", ""))
}

type staticSource struct {
	password string
	err      error
	calls    int
}

func (s *staticSource) Password(endpoint, username string) (string, error) {
	s.calls++
	return s.password, s.err
}

func TestResolverUsesConfiguredPassword(t *testing.T) {
	source := &staticSource{password: "from-keyring"}
	r := NewResolver(source, logger.NewNopLogger())

	h := r.Headers(config.EndpointConfig{Name: "primary", Username: "u", Password: "p"})
	assert.Equal(t, Headers("u", "p"), h)
	assert.Equal(t, 0, source.calls)
}

func TestResolverFallsBackToSource(t *testing.T) {
	source := &staticSource{password: "from-keyring"}
	r := NewResolver(source, logger.NewNopLogger())

	h := r.Headers(config.EndpointConfig{Name: "fallback", Username: "u"})
	assert.Equal(t, Headers("u", "from-keyring"), h)
	assert.Equal(t, 1, source.calls)
}

func TestResolverDisablesEndpointWithoutCredentials(t *testing.T) {
	log := logger.NewTestLogger()
	r := NewResolver(&staticSource{err: ErrCredentialsNotFound}, log)

	assert.Nil(t, r.Headers(config.EndpointConfig{Name: "primary", Username: "api-user-01"}))
	assert.Nil(t, r.Headers(config.EndpointConfig{Name: "primary"}))

	warnings := log.GetMessagesByLevel("WARN")
	require.Len(t, warnings, 2)
	assert.Equal(t, "ap...01", warnings[0].Fields["username"])
	assert.Equal(t, "primary", warnings[0].Fields["endpoint"])
	assert.NotContains(t, warnings[1].Fields, "username")
}

func TestResolverLogsSourceFailures(t *testing.T) {
	log := logger.NewTestLogger()
	r := NewResolver(&staticSource{err: errors.New("dbus unavailable")}, log)

	assert.Nil(t, r.Headers(config.EndpointConfig{Name: "primary", Username: "u"}))
	assert.True(t, log.HasMessage("Password lookup failed"))
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore()

	_, err := store.Password("primary", "u")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store("primary", "u", "secret"))
	password, err := store.Password("primary", "u")
	require.NoError(t, err)
	assert.Equal(t, "secret", password)

	raw, err := keyring.Get(KeyringService, "endpoint_primary_u")
	require.NoError(t, err)
	assert.Equal(t, "secret", raw)

	require.NoError(t, store.Delete("primary", "u"))
	assert.ErrorIs(t, store.Delete("primary", "u"), ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Store("", "u", "x"), ErrInvalidCredentials)
	assert.ErrorIs(t, store.Store("primary", "u", ""), ErrInvalidCredentials)
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "******", MaskString("abc"))
	assert.Equal(t, "se...et", MaskString("secret-secret"))
}
