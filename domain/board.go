package domain

import (
	"encoding/json"
)

// Board holds the six lanes plus an id -> lane index kept in sync by every
// operation. Values are treated as immutable: mutators return a new Board and
// never touch the slices of the receiver.
type Board struct {
	columns map[Column][]Task
	index   map[string]Column
}

// BoardState is the persisted shape of a board: one ordered array per lane.
type BoardState struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"in_progress"`
	Review     []Task `json:"review"`
	Blocked    []Task `json:"blocked"`
	Rejected   []Task `json:"rejected"`
	Completed  []Task `json:"completed"`
}

// NewBoard returns an empty board.
func NewBoard() Board {
	return BoardFromColumns(nil)
}

// BoardFromColumns builds a board from raw lanes. Unknown lanes are ignored
// and a task id seen twice keeps only its first occurrence in display order.
func BoardFromColumns(cols map[Column][]Task) Board {
	b := Board{
		columns: make(map[Column][]Task, len(Columns)),
		index:   make(map[string]Column),
	}
	for _, c := range Columns {
		list := make([]Task, 0, len(cols[c]))
		for _, t := range cols[c] {
			if t.ID == "" {
				continue
			}
			if _, dup := b.index[t.ID]; dup {
				continue
			}
			b.index[t.ID] = c
			list = append(list, t.Clone())
		}
		b.columns[c] = list
	}
	return b
}

// Column returns a copy of the tasks in lane c.
func (b Board) Column(c Column) []Task {
	src := b.columns[c]
	out := make([]Task, len(src))
	copy(out, src)
	return out
}

// Columns returns a copy of every lane.
func (b Board) Columns() map[Column][]Task {
	out := make(map[Column][]Task, len(Columns))
	for _, c := range Columns {
		out[c] = b.Column(c)
	}
	return out
}

// Len is the total number of tasks on the board.
func (b Board) Len() int {
	return len(b.index)
}

// Locate returns the lane and position of a task.
func (b Board) Locate(id string) (Column, int, bool) {
	c, ok := b.index[id]
	if !ok {
		return "", -1, false
	}
	pos := indexOf(b.columns[c], id)
	if pos < 0 {
		return "", -1, false
	}
	return c, pos, true
}

// Task looks a task up by id.
func (b Board) Task(id string) (Task, Column, bool) {
	c, pos, ok := b.Locate(id)
	if !ok {
		return Task{}, "", false
	}
	return b.columns[c][pos].Clone(), c, true
}

// Tasks returns every task in lane order.
func (b Board) Tasks() []Task {
	out := make([]Task, 0, b.Len())
	for _, c := range Columns {
		out = append(out, b.columns[c]...)
	}
	return out
}

// Insert places task into lane c at a clamped index. Inserting an id that is
// already on the board, or into an unknown lane, is a no-op.
func (b Board) Insert(c Column, index int, task Task) Board {
	if !c.Valid() || task.ID == "" {
		return b
	}
	if _, exists := b.index[task.ID]; exists {
		return b
	}
	next := b.clone()
	next.columns[c] = insertAt(append([]Task(nil), b.columns[c]...), index, task.Clone())
	next.index[task.ID] = c
	return next
}

// Update replaces a task in place through fn. The id and lane never change.
func (b Board) Update(id string, fn func(Task) Task) Board {
	c, pos, ok := b.Locate(id)
	if !ok || fn == nil {
		return b
	}
	updated := fn(b.columns[c][pos].Clone())
	updated.ID = id
	next := b.clone()
	list := append([]Task(nil), b.columns[c]...)
	list[pos] = updated
	next.columns[c] = list
	return next
}

// Remove deletes a task from whichever lane holds it.
func (b Board) Remove(id string) Board {
	c, pos, ok := b.Locate(id)
	if !ok {
		return b
	}
	next := b.clone()
	next.columns[c] = without(b.columns[c], pos)
	delete(next.index, id)
	return next
}

// State converts the board into its persisted shape.
func (b Board) State() BoardState {
	return BoardState{
		Todo:       b.Column(ColumnTodo),
		InProgress: b.Column(ColumnInProgress),
		Review:     b.Column(ColumnReview),
		Blocked:    b.Column(ColumnBlocked),
		Rejected:   b.Column(ColumnRejected),
		Completed:  b.Column(ColumnCompleted),
	}
}

// Board rebuilds an indexed board from the persisted shape.
func (s BoardState) Board() Board {
	return BoardFromColumns(map[Column][]Task{
		ColumnTodo:       s.Todo,
		ColumnInProgress: s.InProgress,
		ColumnReview:     s.Review,
		ColumnBlocked:    s.Blocked,
		ColumnRejected:   s.Rejected,
		ColumnCompleted:  s.Completed,
	})
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.State())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var state BoardState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	*b = state.Board()
	return nil
}

func (b Board) clone() Board {
	next := Board{
		columns: make(map[Column][]Task, len(Columns)),
		index:   make(map[string]Column, len(b.index)+1),
	}
	for _, c := range Columns {
		if list, ok := b.columns[c]; ok {
			next.columns[c] = list
		} else {
			next.columns[c] = []Task{}
		}
	}
	for id, c := range b.index {
		next.index[id] = c
	}
	return next
}

func indexOf(list []Task, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func without(list []Task, pos int) []Task {
	out := make([]Task, 0, len(list)-1)
	out = append(out, list[:pos]...)
	return append(out, list[pos+1:]...)
}

func insertAt(list []Task, index int, task Task) []Task {
	index = clampIndex(index, len(list))
	list = append(list, Task{})
	copy(list[index+1:], list[index:])
	list[index] = task
	return list
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index > length {
		return length
	}
	return index
}
