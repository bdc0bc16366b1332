package domain

// Column is one lane of the task board.
type Column string

const (
	ColumnTodo       Column = "todo"
	ColumnInProgress Column = "in_progress"
	ColumnReview     Column = "review"
	ColumnBlocked    Column = "blocked"
	ColumnRejected   Column = "rejected"
	ColumnCompleted  Column = "completed"
)

// Columns lists every lane in display order.
var Columns = []Column{
	ColumnTodo,
	ColumnInProgress,
	ColumnReview,
	ColumnBlocked,
	ColumnRejected,
	ColumnCompleted,
}

var columnLabels = map[Column]string{
	ColumnTodo:       "To Do",
	ColumnInProgress: "In Progress",
	ColumnReview:     "Review",
	ColumnBlocked:    "Blocked",
	ColumnRejected:   "Rejected",
	ColumnCompleted:  "Completed",
}

// Valid reports whether c names a known lane.
func (c Column) Valid() bool {
	_, ok := columnLabels[c]
	return ok
}

// Label returns the human readable lane title.
func (c Column) Label() string {
	return columnLabels[c]
}

// ParseColumn validates a raw column name.
func ParseColumn(raw string) (Column, bool) {
	c := Column(raw)
	return c, c.Valid()
}

// ColumnForStatus maps a task document status onto a lane. Unknown values land in todo.
func ColumnForStatus(status string) Column {
	switch status {
	case "in_progress":
		return ColumnInProgress
	case "review":
		return ColumnReview
	case "blocked":
		return ColumnBlocked
	case "rejected":
		return ColumnRejected
	case "done", "completed":
		return ColumnCompleted
	default:
		return ColumnTodo
	}
}
