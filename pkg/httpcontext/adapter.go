package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskboard/pkg/logger"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	remoteAddrKey
)

// Request user values set by the auth middleware.
const (
	UserValueUserID    = "auth.user_id"
	UserValueSessionID = "auth.session_id"
	UserValueName      = "auth.name"
	UserValueEmail     = "auth.email"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	SessionID string
	Name      string
	Email     string
}

// SetPrincipal stores p on the request.
func SetPrincipal(ctx *fasthttp.RequestCtx, p Principal) {
	ctx.SetUserValue(UserValueUserID, p.UserID)
	ctx.SetUserValue(UserValueSessionID, p.SessionID)
	ctx.SetUserValue(UserValueName, p.Name)
	ctx.SetUserValue(UserValueEmail, p.Email)
}

// PrincipalFrom reads the caller stored by SetPrincipal. ok is false when no user id is set.
func PrincipalFrom(ctx *fasthttp.RequestCtx) (Principal, bool) {
	p := Principal{
		UserID:    userValue(ctx, UserValueUserID),
		SessionID: userValue(ctx, UserValueSessionID),
		Name:      userValue(ctx, UserValueName),
		Email:     userValue(ctx, UserValueEmail),
	}
	return p, p.UserID != ""
}

// ContextPrincipal returns the caller copied into a request context by Attach.
func ContextPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != ""
}

// RemoteAddr returns the client address copied into a request context by Attach.
func RemoteAddr(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey).(string)
	return addr
}

func userValue(ctx *fasthttp.RequestCtx, key string) string {
	v, _ := ctx.UserValue(key).(string)
	return v
}

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach derives the per-request context: the adapter timeout, the request
// id (echoed in X-Request-ID), the caller and the client address.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if p, ok := PrincipalFrom(ctx); ok {
		stdCtx = context.WithValue(stdCtx, principalKey, p)
	}
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, remoteAddrKey, remoteAddr.String())
	}
	return stdCtx, cancel
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
