package transport

import (
	"github.com/fastygo/taskboard/domain"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

// CardView is a task plus the display fields derived from the directory.
type CardView struct {
	Task          domain.Task `json:"task"`
	Initials      []string    `json:"initials"`
	AssigneeNames []string    `json:"assignee_names"`
	CanApprove    bool        `json:"can_approve"`
}

type ColumnView struct {
	ID    domain.Column `json:"id"`
	Label string        `json:"label"`
	Cards []CardView    `json:"cards"`
}

type BoardView struct {
	Columns   []ColumnView            `json:"columns"`
	Directory []domain.DirectoryEntry `json:"directory"`
	Pending   boardUC.Pending         `json:"pending"`
	Filter    []string                `json:"filter,omitempty"`
}

// NewBoardView renders every lane in display order, filtered by assignee ids.
func NewBoardView(ctrl *boardUC.Controller, selected []string) BoardView {
	snap := ctrl.Snapshot()
	visible := snap.Resolver.VisibleColumns(snap.Board, selected)

	view := BoardView{
		Columns:   make([]ColumnView, 0, len(domain.Columns)),
		Directory: snap.Directory,
		Pending:   snap.Pending,
		Filter:    selected,
	}
	for _, col := range domain.Columns {
		cards := make([]CardView, 0, len(visible[col]))
		for _, task := range visible[col] {
			cards = append(cards, CardView{
				Task:          task,
				Initials:      snap.Resolver.AssigneeInitials(task),
				AssigneeNames: snap.Resolver.AssigneeNames(task),
				CanApprove:    col == domain.ColumnReview && snap.Approvable[task.ID],
			})
		}
		view.Columns = append(view.Columns, ColumnView{ID: col, Label: col.Label(), Cards: cards})
	}
	return view
}

type DragResponse struct {
	Payload string `json:"payload"`
}

type DropResponse struct {
	Outcome boardUC.Outcome `json:"outcome"`
	Pending boardUC.Pending `json:"pending"`
}

// WorkflowResponse reports whether a confirm or cancel changed anything.
type WorkflowResponse struct {
	Applied bool            `json:"applied"`
	Pending boardUC.Pending `json:"pending"`
}

type TaskDetailsResponse struct {
	Task   domain.Task   `json:"task"`
	Column domain.Column `json:"column"`
	Label  string        `json:"label"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
