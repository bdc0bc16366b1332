package domain

import (
	"encoding/json"
	"strings"
)

// Priority ranks a task card.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// NormalizePriority maps unknown or empty values to medium.
func NormalizePriority(p Priority) Priority {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// Task is a card on the board.
//
// AssigneeIDs is the single source of truth for assignment; the legacy
// assigneeId field is only read when decoding old snapshots and written as a
// projection of AssigneeIDs[0].
type Task struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	DueDate            string   `json:"dueDate,omitempty"`
	Priority           Priority `json:"priority,omitempty"`
	AssigneeIDs        []string `json:"assigneeIds,omitempty"`
	AssigneeName       string   `json:"assigneeName,omitempty"`
	CreatedByName      string   `json:"createdByName,omitempty"`
	ReviewerID         string   `json:"reviewerId,omitempty"`
	ReviewerName       string   `json:"reviewerName,omitempty"`
	BlockedByTaskID    string   `json:"blockedByTaskId,omitempty"`
	BlockedByTaskTitle string   `json:"blockedByTaskTitle,omitempty"`
	ClosedAt           string   `json:"closedAt,omitempty"`
}

// AssigneeID is the legacy single-assignee view.
func (t Task) AssigneeID() string {
	if len(t.AssigneeIDs) == 0 {
		return ""
	}
	return t.AssigneeIDs[0]
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	if t.AssigneeIDs != nil {
		t.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	}
	return t
}

type taskAlias Task

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		taskAlias
		AssigneeID string `json:"assigneeId,omitempty"`
	}{taskAlias: taskAlias(t), AssigneeID: t.AssigneeID()})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var raw struct {
		taskAlias
		AssigneeID string `json:"assigneeId,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.taskAlias)
	if len(t.AssigneeIDs) == 0 && strings.TrimSpace(raw.AssigneeID) != "" {
		t.AssigneeIDs = []string{raw.AssigneeID}
	}
	return nil
}

// TaskDocument is the read-only shape of the tasks collection used for seeding and details lookup.
type TaskDocument struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
}

// Card converts a task document into a fresh board card.
func (d TaskDocument) Card() Task {
	return Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		DueDate:     d.DueDate,
		Priority:    NormalizePriority(Priority(d.Priority)),
	}
}
