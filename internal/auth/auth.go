package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/models"
)

type ctxKey struct{}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID string
	Role   models.Role
}

// Claims are the claims issued by the identity provider
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with the provider's shared secret
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses token and returns the actor it identifies
func (v *Verifier) Verify(token string) (Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Actor{}, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthenticated)
	}

	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: token has no subject", apperrors.ErrUnauthenticated)
	}

	role := models.Role(claims.Role)
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return Actor{}, fmt.Errorf("%w: unknown role %q", apperrors.ErrUnauthenticated, claims.Role)
	}

	return Actor{UserID: claims.Subject, Role: role}, nil
}

// Issue signs a token for userID. Production tokens come from the identity
// provider; this is used by tests and local tooling.
func (v *Verifier) Issue(userID string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// WithActor stores actor in ctx
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFromContext returns the actor attached by Authenticate
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(Actor)
	return actor, ok
}

// RequireActor returns the actor in ctx or ErrUnauthenticated
func RequireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return Actor{}, apperrors.ErrUnauthenticated
	}
	return actor, nil
}

// HasRole reports whether the actor holds one of roles
func (a Actor) HasRole(roles ...models.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// ErrMissingToken is returned when the Authorization header is absent
var ErrMissingToken = errors.New("missing bearer token")

// FromRequest verifies the bearer token of r. It returns ErrMissingToken
// when no token was sent.
func (v *Verifier) FromRequest(r *http.Request) (Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Actor{}, ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return Actor{}, fmt.Errorf("%w: malformed authorization header", apperrors.ErrUnauthenticated)
	}
	return v.Verify(token)
}
