package board

import (
	"strings"

	"github.com/fastygo/taskboard/domain"
)

const placeholderInitial = "U"

// Resolver turns raw assignee ids into display names. Every name lookup goes
// through the same chain: directory entry, then the task's stored assignee
// name, then the signed-in user's name.
type Resolver struct {
	names       map[string]string
	sessionName string
}

// NewResolver indexes the directory. Blank names are skipped so the chain can fall through.
func NewResolver(directory []domain.DirectoryEntry, sessionName string) Resolver {
	names := make(map[string]string, len(directory))
	for _, entry := range directory {
		name := strings.TrimSpace(entry.Name)
		if entry.ID == "" || name == "" {
			continue
		}
		if _, exists := names[entry.ID]; !exists {
			names[entry.ID] = name
		}
	}
	return Resolver{names: names, sessionName: strings.TrimSpace(sessionName)}
}

// Name resolves one id in the context of task.
func (r Resolver) Name(task domain.Task, id string) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	if name := strings.TrimSpace(task.AssigneeName); name != "" {
		return name
	}
	return r.sessionName
}

// DirectoryName returns the directory name for id only.
func (r Resolver) DirectoryName(id string) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

// AssigneeInitials returns one initial per assignee id, without deduplication.
// A task with no assignee ids falls back to its stored assignee name, then to
// a single author-initial placeholder.
func (r Resolver) AssigneeInitials(task domain.Task) []string {
	ids := assigneeIDs(task)
	if len(ids) == 0 {
		if initial := domain.Initial(task.AssigneeName); initial != "" {
			return []string{initial}
		}
		return []string{authorInitial(task)}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		initial := domain.Initial(r.Name(task, id))
		if initial == "" {
			initial = placeholderInitial
		}
		out = append(out, initial)
	}
	return out
}

// AssigneeNames returns the resolved names in assignment order, deduplicated.
func (r Resolver) AssigneeNames(task domain.Task) []string {
	ids := assigneeIDs(task)
	if len(ids) == 0 {
		if name := strings.TrimSpace(task.AssigneeName); name != "" {
			return []string{name}
		}
		return []string{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name := r.Name(task, id)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// TaskMatchesFilter reports whether task is visible under the assignee selection.
// An empty selection shows everything. Otherwise any assignee or reviewer id
// in the selection matches; failing that, names are compared so legacy cards
// without ids still filter.
func (r Resolver) TaskMatchesFilter(task domain.Task, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	wanted := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		wanted[id] = struct{}{}
	}
	for _, id := range taskPeopleIDs(task) {
		if _, ok := wanted[id]; ok {
			return true
		}
	}

	selectedNames := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		if name, ok := r.names[id]; ok {
			selectedNames[strings.ToLower(name)] = struct{}{}
		}
	}
	if len(selectedNames) == 0 {
		return false
	}
	candidates := r.AssigneeNames(task)
	if name := strings.TrimSpace(task.ReviewerName); name != "" {
		candidates = append(candidates, name)
	}
	for _, name := range candidates {
		if _, ok := selectedNames[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}

// VisibleColumns applies the filter to every lane, keeping display order.
func (r Resolver) VisibleColumns(b domain.Board, selected []string) map[domain.Column][]domain.Task {
	out := make(map[domain.Column][]domain.Task, len(domain.Columns))
	for _, c := range domain.Columns {
		lane := b.Column(c)
		visible := make([]domain.Task, 0, len(lane))
		for _, task := range lane {
			if r.TaskMatchesFilter(task, selected) {
				visible = append(visible, task)
			}
		}
		out[c] = visible
	}
	return out
}

func assigneeIDs(task domain.Task) []string {
	out := make([]string, 0, len(task.AssigneeIDs))
	for _, id := range task.AssigneeIDs {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func taskPeopleIDs(task domain.Task) []string {
	ids := assigneeIDs(task)
	if id := strings.TrimSpace(task.ReviewerID); id != "" {
		ids = append(ids, id)
	}
	return ids
}

func authorInitial(task domain.Task) string {
	if initial := domain.Initial(task.CreatedByName); initial != "" {
		return initial
	}
	return placeholderInitial
}
