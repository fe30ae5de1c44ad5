package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehub/internal/domain/entity"
)

type stubVerifier struct {
	token *auth.Token
	err   error
}

func (s stubVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return s.token, s.err
}

func TestVerifyTokenReadsRoleClaim(t *testing.T) {
	client := &FirebaseAuthClient{client: stubVerifier{token: &auth.Token{
		UID:    "u1",
		Claims: map[string]interface{}{RoleClaim: "admin"},
	}}}

	caller, err := client.VerifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, entity.Caller{UserID: "u1", Role: "admin"}, caller)
}

func TestVerifyTokenWithoutRole(t *testing.T) {
	client := &FirebaseAuthClient{client: stubVerifier{token: &auth.Token{UID: "u1"}}}

	caller, err := client.VerifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.False(t, caller.IsAdmin())
}

func TestVerifyTokenError(t *testing.T) {
	client := &FirebaseAuthClient{client: stubVerifier{err: errors.New("expired")}}

	_, err := client.VerifyToken(context.Background(), "t")
	assert.Error(t, err)
}

func TestDevTokenVerifier(t *testing.T) {
	v := DevTokenVerifier{}

	caller, err := v.VerifyToken(context.Background(), DevToken("alice", ""))
	require.NoError(t, err)
	assert.Equal(t, "alice", caller.UserID)

	caller, err = v.VerifyToken(context.Background(), DevToken("root", entity.RoleAdmin))
	require.NoError(t, err)
	assert.True(t, caller.IsAdmin())

	_, err = v.VerifyToken(context.Background(), "eyJhbGciOi")
	assert.Error(t, err)
	_, err = v.VerifyToken(context.Background(), "dev:")
	assert.Error(t, err)
}
