package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

// BoardProvider hands out the caller's board controller.
type BoardProvider interface {
	Controller(ctx context.Context, actor boardUC.Actor) (*boardUC.Controller, error)
}

type BoardHandler struct {
	baseHandler
	boards BoardProvider
}

func NewBoardHandler(boards BoardProvider, adapter *httpcontext.Adapter, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		boards:      boards,
	}
}

// boardRequest resolves the caller's controller and hands it to fn.
func (h *BoardHandler) boardRequest(ctx *fasthttp.RequestCtx, fn func(stdCtx context.Context, ctrl *boardUC.Controller)) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ctrl, err := h.boards.Controller(stdCtx, boardUC.Actor{ID: p.UserID, Name: p.Name})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	fn(stdCtx, ctrl)
}

// @Summary Board with filtered columns
// @Tags board
// @Param assignees query string false "comma separated user ids"
// @Router /api/v1/board [get]
func (h *BoardHandler) GetBoard(ctx *fasthttp.RequestCtx) {
	selected := splitList(string(ctx.QueryArgs().Peek("assignees")))
	h.boardRequest(ctx, func(_ context.Context, ctrl *boardUC.Controller) {
		h.respondSuccess(ctx, http.StatusOK, transport.NewBoardView(ctrl, selected))
	})
}

// @Summary Start dragging a card
// @Tags board
// @Router /api/v1/board/drag [post]
func (h *BoardHandler) Drag(ctx *fasthttp.RequestCtx) {
	var req transport.DragRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		payload, ok := ctrl.BeginDrag(domain.Column(req.Column), req.TaskID)
		if !ok {
			h.respondError(ctx, stdCtx, domain.NewError(domain.ErrCodeInvalid, "unknown column or task"))
			return
		}
		h.respondSuccess(ctx, http.StatusOK, transport.DragResponse{Payload: payload})
	})
}

// @Summary Drop a dragged card on a column or onto a card position
// @Tags board
// @Router /api/v1/board/drop [post]
func (h *BoardHandler) Drop(ctx *fasthttp.RequestCtx) {
	var req transport.DropRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		target := domain.Column(req.Column)
		var outcome boardUC.Outcome
		if req.Index == nil {
			outcome = ctrl.DropOnColumn(stdCtx, req.Payload, target)
		} else {
			outcome = ctrl.DropOnCard(stdCtx, req.Payload, target, *req.Index)
		}
		h.respondSuccess(ctx, http.StatusOK, transport.DropResponse{Outcome: outcome, Pending: ctrl.Pending()})
	})
}

// @Summary Reviewer choices for the pending review move
// @Tags board
// @Router /api/v1/board/review/candidates [get]
func (h *BoardHandler) ReviewerCandidates(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(_ context.Context, ctrl *boardUC.Controller) {
		h.respondSuccess(ctx, http.StatusOK, ctrl.ReviewerCandidates())
	})
}

// @Summary Confirm the reviewer
// @Tags board
// @Router /api/v1/board/review/confirm [post]
func (h *BoardHandler) ConfirmReviewer(ctx *fasthttp.RequestCtx) {
	var req transport.SelectRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		applied := ctrl.ConfirmReviewer(stdCtx, req.ID)
		h.respondWorkflow(ctx, ctrl, applied)
	})
}

// @Summary Cancel the pending review move
// @Tags board
// @Router /api/v1/board/review/cancel [post]
func (h *BoardHandler) CancelReviewer(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		h.respondWorkflow(ctx, ctrl, ctrl.CancelReviewer(stdCtx))
	})
}

// @Summary Blocker choices for the pending blocked move
// @Tags board
// @Router /api/v1/board/blocked/candidates [get]
func (h *BoardHandler) BlockerCandidates(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(_ context.Context, ctrl *boardUC.Controller) {
		h.respondSuccess(ctx, http.StatusOK, ctrl.BlockerCandidates())
	})
}

// @Summary Confirm the blocking task
// @Tags board
// @Router /api/v1/board/blocked/confirm [post]
func (h *BoardHandler) ConfirmBlocker(ctx *fasthttp.RequestCtx) {
	var req transport.SelectRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		h.respondWorkflow(ctx, ctrl, ctrl.ConfirmBlocker(stdCtx, req.ID))
	})
}

// @Summary Cancel the pending blocked move
// @Tags board
// @Router /api/v1/board/blocked/cancel [post]
func (h *BoardHandler) CancelBlocker(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		h.respondWorkflow(ctx, ctrl, ctrl.CancelBlocker(stdCtx))
	})
}

// @Summary Ask to approve a task under review
// @Tags board
// @Router /api/v1/board/tasks/{id}/approve [post]
func (h *BoardHandler) RequestApproval(ctx *fasthttp.RequestCtx) {
	id := pathValue(ctx, "id")
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		if !ctrl.RequestApproval(id) {
			h.respondError(ctx, stdCtx, domain.NewError(domain.ErrCodeForbidden, "only the assigned reviewer can approve this task"))
			return
		}
		h.respondWorkflow(ctx, ctrl, true)
	})
}

// @Summary Confirm the approval
// @Tags board
// @Router /api/v1/board/approval/confirm [post]
func (h *BoardHandler) ConfirmApproval(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		n, ok := ctrl.ConfirmApproval()
		if !ok {
			h.respondError(ctx, stdCtx, domain.NewError(domain.ErrCodeConflict, "no approval pending"))
			return
		}
		h.respondSuccess(ctx, http.StatusOK, n)
	})
}

// @Summary Cancel the approval
// @Tags board
// @Router /api/v1/board/approval/cancel [post]
func (h *BoardHandler) CancelApproval(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(_ context.Context, ctrl *boardUC.Controller) {
		h.respondWorkflow(ctx, ctrl, ctrl.CancelApproval())
	})
}

// @Summary Create task
// @Tags board
// @Router /api/v1/board/tasks [post]
func (h *BoardHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		task, ok := ctrl.CreateTask(stdCtx, taskInput(req))
		if !ok {
			h.respondError(ctx, stdCtx, domain.NewError(domain.ErrCodeInvalid, "title is required"))
			return
		}
		h.respondSuccess(ctx, http.StatusCreated, task)
	})
}

// @Summary Task details
// @Tags board
// @Router /api/v1/board/tasks/{id} [get]
func (h *BoardHandler) GetTask(ctx *fasthttp.RequestCtx) {
	id := pathValue(ctx, "id")
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		task, col, err := ctrl.TaskDetails(stdCtx, id)
		if err != nil {
			h.respondError(ctx, stdCtx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, transport.TaskDetailsResponse{Task: task, Column: col, Label: col.Label()})
	})
}

// @Summary Edit task
// @Tags board
// @Router /api/v1/board/tasks/{id} [put]
func (h *BoardHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	id := pathValue(ctx, "id")
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		if strings.TrimSpace(req.Title) == "" {
			h.respondError(ctx, stdCtx, domain.NewError(domain.ErrCodeInvalid, "title is required"))
			return
		}
		task, ok := ctrl.EditTask(stdCtx, id, taskInput(req))
		if !ok {
			h.respondError(ctx, stdCtx, domain.ErrTaskNotFound)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, task)
	})
}

// @Summary Delete task
// @Tags board
// @Router /api/v1/board/tasks/{id} [delete]
func (h *BoardHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	id := pathValue(ctx, "id")
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		if !ctrl.DeleteTask(stdCtx, id) {
			h.respondError(ctx, stdCtx, domain.ErrTaskNotFound)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, transport.MessageResponse{Message: "deleted"})
	})
}

// @Summary Notification feed, newest first
// @Tags notifications
// @Router /api/v1/notifications [get]
func (h *BoardHandler) Notifications(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(_ context.Context, ctrl *boardUC.Controller) {
		h.respondSuccess(ctx, http.StatusOK, ctrl.Notifications())
	})
}

// @Summary Mark a notification as read
// @Tags notifications
// @Router /api/v1/notifications/{id}/read [post]
func (h *BoardHandler) MarkAsRead(ctx *fasthttp.RequestCtx) {
	id := pathValue(ctx, "id")
	h.boardRequest(ctx, func(stdCtx context.Context, ctrl *boardUC.Controller) {
		if !ctrl.MarkAsRead(id) {
			h.respondError(ctx, stdCtx, domain.NewError(domain.ErrCodeNotFound, "notification not found"))
			return
		}
		h.respondSuccess(ctx, http.StatusOK, ctrl.Notifications())
	})
}

// @Summary Clear all notifications
// @Tags notifications
// @Router /api/v1/notifications [delete]
func (h *BoardHandler) ClearNotifications(ctx *fasthttp.RequestCtx) {
	h.boardRequest(ctx, func(_ context.Context, ctrl *boardUC.Controller) {
		ctrl.ClearNotifications()
		h.respondSuccess(ctx, http.StatusOK, []domain.Notification{})
	})
}

func (h *BoardHandler) respondWorkflow(ctx *fasthttp.RequestCtx, ctrl *boardUC.Controller, applied bool) {
	h.respondSuccess(ctx, http.StatusOK, transport.WorkflowResponse{Applied: applied, Pending: ctrl.Pending()})
}

func taskInput(req transport.TaskRequest) boardUC.TaskInput {
	return boardUC.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    domain.Priority(req.Priority),
		AssigneeIDs: req.AssigneeIDs,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
