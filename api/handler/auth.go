package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	authUC "github.com/fastygo/taskboard/usecase/auth"
)

// SessionForgetter drops per-user state held in memory after sign-out.
type SessionForgetter interface {
	Forget(userID string)
}

type AuthHandler struct {
	baseHandler
	uc     *authUC.UseCase
	boards SessionForgetter
}

func NewAuthHandler(uc *authUC.UseCase, boards SessionForgetter, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		boards:      boards,
	}
}

// @Summary Register with email and password
// @Tags auth
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(ctx *fasthttp.RequestCtx) {
	var req transport.RegisterRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	identity, err := h.uc.Register(stdCtx, authUC.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, identity)
}

// @Summary Sign in with email or username
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	identity, err := h.uc.SignIn(stdCtx, req.Identifier, req.Password)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, identity)
}

// @Summary Sign in with a provider ID token
// @Tags auth
// @Router /api/v1/auth/oauth/{provider} [post]
func (h *AuthHandler) OAuth(ctx *fasthttp.RequestCtx) {
	var req transport.OAuthRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	identity, err := h.uc.SignInWithOAuth(stdCtx, pathValue(ctx, "provider"), req.IDToken)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, identity)
}

// @Summary Revoke the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.SignOut(stdCtx, p.SessionID); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	if h.boards != nil {
		h.boards.Forget(p.UserID)
	}
	h.respondSuccess(ctx, http.StatusOK, transport.MessageResponse{Message: "signed out"})
}
