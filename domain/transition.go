package domain

import "time"

// TimestampLayout matches the millisecond ISO-8601 form used for closedAt and notification timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MoveArgs describes a single card move.
type MoveArgs struct {
	FromColumn Column `json:"fromColumn"`
	ToColumn   Column `json:"toColumn"`
	TaskID     string `json:"taskId"`
	ToIndex    int    `json:"toIndex"`
}

type transitionRule func(task Task, from, to Column, now time.Time) Task

// Evaluated in order; every rule that applies fires.
var transitionRules = []transitionRule{
	voidReviewOnRework,
	stampCompletion,
	clearCompletion,
	clearBlocker,
}

// MoveTask removes the task from args.FromColumn, applies the lane entry/exit
// rules and inserts it into args.ToColumn at a clamped index. When the task is
// not in FromColumn the board is returned unchanged. For moves inside one lane
// the index is measured against the lane with the task already removed.
func MoveTask(b Board, args MoveArgs, now time.Time) Board {
	from, to := args.FromColumn, args.ToColumn
	if !from.Valid() || !to.Valid() {
		return b
	}
	if current, ok := b.index[args.TaskID]; !ok || current != from {
		return b
	}
	pos := indexOf(b.columns[from], args.TaskID)
	if pos < 0 {
		return b
	}

	task := b.columns[from][pos].Clone()
	for _, rule := range transitionRules {
		task = rule(task, from, to, now)
	}

	source := without(b.columns[from], pos)
	var target []Task
	if from == to {
		target = source
	} else {
		target = append([]Task(nil), b.columns[to]...)
	}
	target = insertAt(target, args.ToIndex, task)

	next := b.clone()
	if from != to {
		next.columns[from] = source
	}
	next.columns[to] = target
	next.index[task.ID] = to
	return next
}

// Leaving review for anything but review or completed voids the review assignment.
func voidReviewOnRework(task Task, from, to Column, _ time.Time) Task {
	if from == ColumnReview && to != ColumnReview && to != ColumnCompleted {
		task.ReviewerID = ""
		task.ReviewerName = ""
	}
	return task
}

func stampCompletion(task Task, _, to Column, now time.Time) Task {
	if to == ColumnCompleted && task.ClosedAt == "" {
		task.ClosedAt = FormatTimestamp(now)
	}
	return task
}

func clearCompletion(task Task, from, to Column, _ time.Time) Task {
	if from == ColumnCompleted && to != ColumnCompleted && task.ClosedAt != "" {
		task.ClosedAt = ""
	}
	return task
}

func clearBlocker(task Task, from, to Column, _ time.Time) Task {
	if from == ColumnBlocked && to != ColumnBlocked {
		task.BlockedByTaskID = ""
		task.BlockedByTaskTitle = ""
	}
	return task
}
