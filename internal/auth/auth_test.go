package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService() *Service {
	svc := NewService("test-secret")
	svc.RegisterPlayer(TestUsername, TestPassword, TestClan)
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.GenerateToken(Credentials{Username: TestUsername, Password: TestPassword})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, TestUsername, claims.Username)
	assert.Equal(t, TestClan, claims.Clan)
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	svc := newTestAuthService()

	_, err := svc.GenerateToken(Credentials{Username: TestUsername, Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{Username: "nobody", Password: TestPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := newTestAuthService()
	other := NewService("other-secret")
	other.RegisterPlayer(TestUsername, TestPassword, TestClan)

	token, err := other.GenerateToken(Credentials{Username: TestUsername, Password: TestPassword})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token.Token)
	assert.Error(t, err)
}

func TestGetUsernameAndClanFromMapClaims(t *testing.T) {
	claims := jwt.MapClaims{"username": TestUsername, "clan": TestClan}
	assert.Equal(t, TestUsername, GetUsername(claims))
	assert.Equal(t, TestClan, GetClan(claims))

	assert.Empty(t, GetUsername(jwt.MapClaims{}))
	assert.Empty(t, GetClan(nil))
}
