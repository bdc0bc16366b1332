package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/pkg/httpcontext"
)

// SessionChecker rejects tokens whose session was revoked.
type SessionChecker interface {
	ValidateSession(ctx context.Context, sessionID string) error
}

// JWTAuth validates HS256 bearer tokens and stores the caller on the request.
// A nil checker skips the revocation lookup.
func JWTAuth(secret string, checker SessionChecker, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" || secret == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			principal := httpcontext.Principal{
				UserID:    claimString(claims, "user_id"),
				SessionID: claimString(claims, "sid"),
				Name:      claimString(claims, "name"),
				Email:     claimString(claims, "email"),
			}
			if principal.UserID == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			if checker != nil {
				checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				err := checker.ValidateSession(checkCtx, principal.SessionID)
				cancel()
				if principal.SessionID == "" || err != nil {
					logger.Info("rejected revoked session", zap.String("user_id", principal.UserID), zap.Error(err))
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					return
				}
			}

			httpcontext.SetPrincipal(ctx, principal)
			next(ctx)
		}
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
