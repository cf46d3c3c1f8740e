package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/carlo-colombo/cashsplitter/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ReplicaKey is the context key for storing the authenticated replica name.
const ReplicaKey contextKey = "replica"

// GetReplica extracts the replica name from the context.
// Returns empty string if not found.
func GetReplica(ctx context.Context) string {
	replica, _ := ctx.Value(ReplicaKey).(string)
	return replica
}

// RequireAuth returns an interceptor that validates JWT bearer tokens.
// It extracts the token from the Authorization header, validates it, and adds
// the replica name to the request context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			// Parse Bearer token
			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			ctx = context.WithValue(ctx, ReplicaKey, claims.Replica)
			return next(ctx, req)
		}
	}
}

// BearerToken returns a client interceptor that sends token on every call.
func BearerToken(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}
