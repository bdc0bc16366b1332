package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/repository/memory"
	redisrepo "github.com/fastygo/taskboard/repository/redis"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	boardUC "github.com/fastygo/taskboard/usecase/board"
	profileUC "github.com/fastygo/taskboard/usecase/profile"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  json.RawMessage `json:"error"`
}

type staticHealth monitor.Status

func (s staticHealth) GetStatus() monitor.Status { return monitor.Status(s) }

type testServer struct {
	t       *testing.T
	handler fasthttp.RequestHandler
}

func newTestServer(t *testing.T, health monitor.Status) *testServer {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewDocumentStore()
	adapter := httpcontext.NewAdapter(time.Second)
	auth := authUC.New(store, redisrepo.NewSessionRepository(client, time.Hour), authUC.NewTokenIssuer("secret", "taskboard"), authUC.Options{BcryptCost: bcrypt.MinCost}, nil)
	boards := boardUC.NewService(store, nil, boardUC.Options{}, nil)
	profiles := profileUC.New(store, nil, auth, nil)

	r := router.New(router.Handlers{
		Auth:    handler.NewAuthHandler(auth, boards, adapter, nil),
		Profile: handler.NewProfileHandler(profiles, adapter, nil),
		Board:   handler.NewBoardHandler(boards, adapter, nil),
		Health:  handler.NewHealthHandler(staticHealth(health), adapter, nil),
	}, middleware.JWTAuth("secret", auth, nil))
	return &testServer{t: t, handler: r.Handler}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
		ctx.Request.SetBody(raw)
	}
	s.handler(ctx)

	var env envelope
	if len(ctx.Response.Body()) > 0 {
		if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
			s.t.Fatalf("%s %s: decode response %q: %v", method, path, ctx.Response.Body(), err)
		}
	}
	return ctx.Response.StatusCode(), env
}

func (s *testServer) mustDo(method, path, token string, body interface{}, wantStatus int, out interface{}) {
	s.t.Helper()
	status, env := s.do(method, path, token, body)
	if status != wantStatus {
		s.t.Fatalf("%s %s: expected %d, got %d (%s %s)", method, path, wantStatus, status, env.Code, env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			s.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
}

func (s *testServer) register(first, email string) domain.Identity {
	var id domain.Identity
	s.mustDo(http.MethodPost, "/api/v1/auth/register", "", transport.RegisterRequest{
		FirstName: first, Email: email, Password: "hunter22",
	}, http.StatusCreated, &id)
	return id
}

func TestBoardReviewFlow(t *testing.T) {
	srv := newTestServer(t, monitor.Status{Healthy: true})
	alice := srv.register("Alice", "alice@example.com")
	bob := srv.register("Bob", "bob@example.com")

	var task domain.Task
	srv.mustDo(http.MethodPost, "/api/v1/board/tasks", alice.Token, transport.TaskRequest{Title: " Write docs ", Priority: "urgent", AssigneeIDs: []string{alice.UserID}}, http.StatusCreated, &task)
	if task.Title != "Write docs" || task.Priority != domain.PriorityMedium || task.AssigneeName != "Alice" {
		t.Fatalf("unexpected task %+v", task)
	}
	srv.mustDo(http.MethodPost, "/api/v1/board/tasks", alice.Token, transport.TaskRequest{Title: "  "}, http.StatusBadRequest, nil)

	var view transport.BoardView
	srv.mustDo(http.MethodGet, "/api/v1/board", alice.Token, nil, http.StatusOK, &view)
	if len(view.Columns) != 6 || view.Columns[0].Label != "To Do" || len(view.Columns[0].Cards) != 1 {
		t.Fatalf("unexpected board %+v", view)
	}
	if got := view.Columns[0].Cards[0].Initials; len(got) != 1 || got[0] != "A" {
		t.Fatalf("unexpected initials %v", got)
	}

	var drag transport.DragResponse
	srv.mustDo(http.MethodPost, "/api/v1/board/drag", alice.Token, transport.DragRequest{Column: "todo", TaskID: task.ID}, http.StatusOK, &drag)

	var drop transport.DropResponse
	srv.mustDo(http.MethodPost, "/api/v1/board/drop", alice.Token, transport.DropRequest{Payload: drag.Payload, Column: "review"}, http.StatusOK, &drop)
	if drop.Outcome != boardUC.OutcomeReviewRequested || drop.Pending.Review == nil {
		t.Fatalf("expected pending review, got %+v", drop)
	}

	var candidates []domain.DirectoryEntry
	srv.mustDo(http.MethodGet, "/api/v1/board/review/candidates", alice.Token, nil, http.StatusOK, &candidates)
	if len(candidates) != 1 || candidates[0].ID != bob.UserID {
		t.Fatalf("expected bob as the only candidate, got %+v", candidates)
	}

	var workflow transport.WorkflowResponse
	srv.mustDo(http.MethodPost, "/api/v1/board/review/confirm", alice.Token, transport.SelectRequest{ID: bob.UserID}, http.StatusOK, &workflow)
	if !workflow.Applied || workflow.Pending.Review != nil {
		t.Fatalf("unexpected workflow %+v", workflow)
	}

	var details transport.TaskDetailsResponse
	srv.mustDo(http.MethodGet, "/api/v1/board/tasks/"+task.ID, alice.Token, nil, http.StatusOK, &details)
	if details.Column != domain.ColumnReview || details.Task.ReviewerName != "Bob" || details.Label != "Review" {
		t.Fatalf("unexpected details %+v", details)
	}

	srv.mustDo(http.MethodPost, "/api/v1/board/tasks/"+task.ID+"/approve", alice.Token, nil, http.StatusForbidden, nil)

	var feed []domain.Notification
	srv.mustDo(http.MethodGet, "/api/v1/notifications", alice.Token, nil, http.StatusOK, &feed)
	if len(feed) != 1 || feed[0].ToStatus != domain.ColumnReview || feed[0].ReviewerName != "Bob" || feed[0].Read {
		t.Fatalf("unexpected feed %+v", feed)
	}
	srv.mustDo(http.MethodPost, "/api/v1/notifications/"+feed[0].ID+"/read", alice.Token, nil, http.StatusOK, &feed)
	if !feed[0].Read {
		t.Fatalf("notification should be read")
	}
	srv.mustDo(http.MethodPost, "/api/v1/notifications/missing/read", alice.Token, nil, http.StatusNotFound, nil)
	srv.mustDo(http.MethodDelete, "/api/v1/notifications", alice.Token, nil, http.StatusOK, &feed)
	if len(feed) != 0 {
		t.Fatalf("feed should be empty")
	}

	srv.mustDo(http.MethodGet, "/api/v1/board?assignees="+bob.UserID, alice.Token, nil, http.StatusOK, &view)
	if len(view.Columns[2].Cards) != 1 {
		t.Fatalf("reviewer filter should keep the card, got %+v", view.Columns[2])
	}

	srv.mustDo(http.MethodDelete, "/api/v1/board/tasks/"+task.ID, alice.Token, nil, http.StatusOK, nil)
	srv.mustDo(http.MethodGet, "/api/v1/board/tasks/"+task.ID, alice.Token, nil, http.StatusNotFound, nil)
}

func TestStaleDropIsIgnored(t *testing.T) {
	srv := newTestServer(t, monitor.Status{Healthy: true})
	alice := srv.register("Alice", "alice@example.com")

	var task domain.Task
	srv.mustDo(http.MethodPost, "/api/v1/board/tasks", alice.Token, transport.TaskRequest{Title: "Ship"}, http.StatusCreated, &task)

	var drag transport.DragResponse
	srv.mustDo(http.MethodPost, "/api/v1/board/drag", alice.Token, transport.DragRequest{Column: "todo", TaskID: task.ID}, http.StatusOK, &drag)

	index := 5
	var drop transport.DropResponse
	srv.mustDo(http.MethodPost, "/api/v1/board/drop", alice.Token, transport.DropRequest{Payload: drag.Payload, Column: "completed", Index: &index}, http.StatusOK, &drop)
	if drop.Outcome != boardUC.OutcomeMoved {
		t.Fatalf("expected move, got %s", drop.Outcome)
	}
	srv.mustDo(http.MethodPost, "/api/v1/board/drop", alice.Token, transport.DropRequest{Payload: drag.Payload, Column: "in_progress"}, http.StatusOK, &drop)
	if drop.Outcome != boardUC.OutcomeIgnored {
		t.Fatalf("replayed payload must be ignored, got %s", drop.Outcome)
	}
	srv.mustDo(http.MethodPost, "/api/v1/board/drop", alice.Token, transport.DropRequest{Payload: "{not json", Column: "todo"}, http.StatusOK, &drop)
	if drop.Outcome != boardUC.OutcomeIgnored {
		t.Fatalf("malformed payload must be ignored, got %s", drop.Outcome)
	}
	srv.mustDo(http.MethodPost, "/api/v1/board/drag", alice.Token, transport.DragRequest{Column: "archive", TaskID: task.ID}, http.StatusBadRequest, nil)
}

func TestAuthAndProfileRoutes(t *testing.T) {
	srv := newTestServer(t, monitor.Status{Healthy: true})
	alice := srv.register("Alice", "alice@example.com")

	srv.mustDo(http.MethodPost, "/api/v1/auth/register", "", transport.RegisterRequest{Email: "alice@example.com", Password: "hunter22"}, http.StatusConflict, nil)
	srv.mustDo(http.MethodPost, "/api/v1/auth/login", "", transport.LoginRequest{Identifier: "alice@example.com", Password: "nope"}, http.StatusUnauthorized, nil)
	srv.mustDo(http.MethodPost, "/api/v1/auth/oauth/google", "", transport.OAuthRequest{IDToken: "x"}, http.StatusBadRequest, nil)

	var profile profileUC.Profile
	srv.mustDo(http.MethodGet, "/api/v1/profile", alice.Token, nil, http.StatusOK, &profile)
	if profile.FirstName != "Alice" || profile.Initials != "A" || profile.Completion != 40 {
		t.Fatalf("unexpected profile %+v", profile)
	}

	var msg transport.MessageResponse
	srv.mustDo(http.MethodPut, "/api/v1/profile", alice.Token, transport.ProfileUpdateRequest{Username: "ally"}, http.StatusOK, &msg)
	if msg.Message != profileUC.MsgUsernameSaved {
		t.Fatalf("unexpected toast %q", msg.Message)
	}

	status, env := srv.do(http.MethodPost, "/api/v1/auth/reauthenticate", alice.Token, transport.ReauthenticateRequest{CurrentPassword: "wrong"})
	if status != http.StatusUnauthorized || string(env.Error) != `"`+domain.MsgIncorrectPassword+`"` {
		t.Fatalf("expected inline password error, got %d %s", status, env.Error)
	}
	srv.mustDo(http.MethodPost, "/api/v1/auth/reauthenticate", alice.Token, transport.ReauthenticateRequest{CurrentPassword: "hunter22"}, http.StatusOK, nil)
	var otherDevice domain.Identity
	srv.mustDo(http.MethodPost, "/api/v1/auth/login", "", transport.LoginRequest{Identifier: "alice@example.com", Password: "hunter22"}, http.StatusOK, &otherDevice)
	srv.mustDo(http.MethodPost, "/api/v1/auth/password", alice.Token, transport.PasswordChangeRequest{NewPassword: "newsecret", ConfirmPassword: "newsecret"}, http.StatusOK, &msg)
	if msg.Message != profileUC.MsgPasswordSaved {
		t.Fatalf("unexpected toast %q", msg.Message)
	}

	if status, _ := srv.do(http.MethodGet, "/api/v1/board", otherDevice.Token, nil); status != http.StatusUnauthorized {
		t.Fatalf("password change must sign out other devices, got %d", status)
	}

	var signedIn domain.Identity
	srv.mustDo(http.MethodPost, "/api/v1/auth/login", "", transport.LoginRequest{Identifier: "ally", Password: "newsecret"}, http.StatusOK, &signedIn)

	srv.mustDo(http.MethodPost, "/api/v1/auth/logout", alice.Token, nil, http.StatusOK, nil)
	status, _ = srv.do(http.MethodGet, "/api/v1/board", alice.Token, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("revoked token must be rejected, got %d", status)
	}
	srv.mustDo(http.MethodGet, "/api/v1/board", signedIn.Token, nil, http.StatusOK, nil)
}

func TestHealth(t *testing.T) {
	healthy := newTestServer(t, monitor.Status{Healthy: true, Services: map[string]bool{"store": true}})
	healthy.mustDo(http.MethodGet, "/health", "", nil, http.StatusOK, nil)

	degraded := newTestServer(t, monitor.Status{Services: map[string]bool{"store": false}})
	status, env := degraded.do(http.MethodGet, "/health", "", nil)
	if status != http.StatusServiceUnavailable || env.Code != "DEGRADED" {
		t.Fatalf("expected degraded health, got %d %+v", status, env)
	}
}
