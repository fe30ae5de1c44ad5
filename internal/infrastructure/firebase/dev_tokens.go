package firebase

import (
	"context"
	"fmt"
	"strings"

	"tradehub/internal/domain/entity"
)

const devTokenPrefix = "dev:"

// DevTokenVerifier accepts "dev:<uid>" or "dev:<uid>:<role>" tokens. It is
// only wired for local development with the in-memory store.
type DevTokenVerifier struct{}

func (DevTokenVerifier) VerifyToken(_ context.Context, token string) (entity.Caller, error) {
	if !strings.HasPrefix(token, devTokenPrefix) {
		return entity.Caller{}, fmt.Errorf("not a development token")
	}
	parts := strings.SplitN(strings.TrimPrefix(token, devTokenPrefix), ":", 2)
	if parts[0] == "" {
		return entity.Caller{}, fmt.Errorf("development token has no user id")
	}

	caller := entity.Caller{UserID: parts[0]}
	if len(parts) == 2 {
		caller.Role = parts[1]
	}
	return caller, nil
}

// DevToken builds a token DevTokenVerifier accepts.
func DevToken(uid, role string) string {
	if role == "" {
		return devTokenPrefix + uid
	}
	return devTokenPrefix + uid + ":" + role
}
