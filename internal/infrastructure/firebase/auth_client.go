package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"tradehub/internal/domain/entity"
)

// RoleClaim is the custom claim carrying the caller's role.
const RoleClaim = "role"

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseAuthClient struct {
	client idTokenVerifier
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken validates a Firebase ID token and returns the identity it carries.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (entity.Caller, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return entity.Caller{}, err
	}

	caller := entity.Caller{UserID: result.UID}
	if role, ok := result.Claims[RoleClaim].(string); ok {
		caller.Role = role
	}
	return caller, nil
}
