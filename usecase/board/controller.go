package board

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// Outcome classifies what a drop did.
type Outcome string

const (
	OutcomeIgnored         Outcome = "ignored"
	OutcomeMoved           Outcome = "moved"
	OutcomeReordered       Outcome = "reordered"
	OutcomeReviewRequested Outcome = "review_requested"
	OutcomeBlockRequested  Outcome = "block_requested"
)

// Actor is the signed-in user driving a controller.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DragPayload is the transfer descriptor carried by a drag session.
type DragPayload struct {
	FromColumn domain.Column `json:"fromColumn"`
	TaskID     string        `json:"taskId"`
}

// PendingMove is a guarded drop waiting for the reviewer or blocker choice.
type PendingMove struct {
	TaskID         string        `json:"taskId"`
	PreviousColumn domain.Column `json:"previousColumn"`
	TargetColumn   domain.Column `json:"targetColumn"`
	TargetIndex    int           `json:"targetIndex"`
}

// Pending reports which confirmation, if any, is open.
type Pending struct {
	Review         *PendingMove `json:"review,omitempty"`
	Blocked        *PendingMove `json:"blocked,omitempty"`
	ApprovalTaskID string       `json:"approvalTaskId,omitempty"`
}

// Open reports whether any confirmation is waiting.
func (p Pending) Open() bool {
	return p.Review != nil || p.Blocked != nil || p.ApprovalTaskID != ""
}

// TaskInput carries the editable fields of a card.
type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     string          `json:"dueDate"`
	Priority    domain.Priority `json:"priority"`
	AssigneeIDs []string        `json:"assigneeIds"`
}

// BlockerOption is a task that may be chosen as a blocker.
type BlockerOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Controller owns one user's board. All methods are safe for concurrent use;
// operations run one at a time against the in-memory snapshot.
type Controller struct {
	mu sync.Mutex

	actor         Actor
	board         domain.Board
	directory     []domain.DirectoryEntry
	notifications []domain.Notification
	pending       Pending

	store   repository.DocumentStore
	local   usecase.LocalStorage
	factory domain.NotificationFactory
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
}

func newController(actor Actor, store repository.DocumentStore, local usecase.LocalStorage, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewTaskID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Controller{
		actor:   actor,
		board:   domain.NewBoard(),
		store:   store,
		local:   local,
		factory: domain.NotificationFactory{Now: now, NewID: opts.NewNotificationID},
		now:     now,
		newID:   newID,
		logger:  logger.With(zap.String("user_id", actor.ID)),
	}
}

// Actor returns the signed-in user this controller acts for.
func (c *Controller) Actor() Actor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actor
}

// rename updates the session display name; an empty name keeps the current one.
func (c *Controller) rename(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actor.Name = name
}

// Board returns the current snapshot.
func (c *Controller) Board() domain.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board
}

// Pending returns the open confirmation state.
func (c *Controller) Pending() Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Directory returns the known users, session user included.
func (c *Controller) Directory() []domain.DirectoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.DirectoryEntry(nil), c.directory...)
}

// Snapshot is a consistent read of one controller taken under a single lock.
type Snapshot struct {
	Board     domain.Board
	Directory []domain.DirectoryEntry
	Pending   Pending
	Resolver  Resolver
	// Approvable holds the review tasks the actor may approve.
	Approvable map[string]bool
}

// Snapshot returns board, directory, pending state and approval rights together.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Board:      c.board,
		Directory:  append([]domain.DirectoryEntry(nil), c.directory...),
		Pending:    c.pending,
		Resolver:   NewResolver(c.directory, c.actor.Name),
		Approvable: make(map[string]bool),
	}
	for _, task := range c.board.Column(domain.ColumnReview) {
		if c.canApprove(task.ID) {
			snap.Approvable[task.ID] = true
		}
	}
	return snap
}

// SetDirectory replaces the directory; the session user is always present.
func (c *Controller) SetDirectory(entries []domain.DirectoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directory = mergeDirectory(entries, c.actor)
}

// BeginDrag encodes the transfer descriptor for taskID in column. No state changes.
func (c *Controller) BeginDrag(column domain.Column, taskID string) (string, bool) {
	if !column.Valid() || strings.TrimSpace(taskID) == "" {
		return "", false
	}
	payload, err := json.Marshal(DragPayload{FromColumn: column, TaskID: taskID})
	if err != nil {
		return "", false
	}
	return string(payload), true
}

// DropOnColumn drops at the end of target.
func (c *Controller) DropOnColumn(ctx context.Context, payload string, target domain.Column) Outcome {
	return c.drop(ctx, payload, target, -1)
}

// DropOnCard drops at index within target.
func (c *Controller) DropOnCard(ctx context.Context, payload string, target domain.Column, index int) Outcome {
	if index < 0 {
		index = 0
	}
	return c.drop(ctx, payload, target, index)
}

func (c *Controller) drop(ctx context.Context, payload string, target domain.Column, index int) Outcome {
	drag, ok := decodeDrag(payload)
	if !ok || !target.Valid() {
		return OutcomeIgnored
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Open() {
		return OutcomeIgnored
	}
	current, _, found := c.board.Locate(drag.TaskID)
	if !found || current != drag.FromColumn {
		return OutcomeIgnored
	}
	if index < 0 {
		index = len(c.board.Column(target))
	}

	switch {
	case drag.FromColumn != domain.ColumnReview && target == domain.ColumnReview:
		c.pending.Review = &PendingMove{TaskID: drag.TaskID, PreviousColumn: drag.FromColumn, TargetColumn: target, TargetIndex: index}
		return OutcomeReviewRequested
	case drag.FromColumn != domain.ColumnBlocked && target == domain.ColumnBlocked:
		c.pending.Blocked = &PendingMove{TaskID: drag.TaskID, PreviousColumn: drag.FromColumn, TargetColumn: target, TargetIndex: index}
		return OutcomeBlockRequested
	}

	task, _, _ := c.board.Task(drag.TaskID)
	c.apply(ctx, domain.MoveTask(c.board, domain.MoveArgs{
		FromColumn: drag.FromColumn,
		ToColumn:   target,
		TaskID:     drag.TaskID,
		ToIndex:    index,
	}, c.now()))

	if drag.FromColumn == target {
		return OutcomeReordered
	}
	c.notify(c.factory.Create(c.actor.Name, task.Title, drag.FromColumn, target, ""))
	return OutcomeMoved
}

// ReviewerCandidates lists directory users not already assigned to the pending task.
func (c *Controller) ReviewerCandidates() []domain.DirectoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Review == nil {
		return nil
	}
	return c.reviewerCandidates(c.pending.Review.TaskID)
}

func (c *Controller) reviewerCandidates(taskID string) []domain.DirectoryEntry {
	task, _, ok := c.board.Task(taskID)
	if !ok {
		return []domain.DirectoryEntry{}
	}
	assigned := make(map[string]struct{}, len(task.AssigneeIDs))
	for _, id := range task.AssigneeIDs {
		assigned[id] = struct{}{}
	}
	out := make([]domain.DirectoryEntry, 0, len(c.directory))
	for _, entry := range c.directory {
		if _, skip := assigned[entry.ID]; skip {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// ConfirmReviewer completes the pending review drop. An empty reviewer id
// closes the workflow like a cancel; an id outside the candidates keeps it
// open and changes nothing. It reports whether the workflow closed.
func (c *Controller) ConfirmReviewer(ctx context.Context, reviewerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pending.Review
	if pending == nil {
		return false
	}
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		c.pending.Review = nil
		c.moveBack(ctx, pending)
		return true
	}

	var reviewer *domain.DirectoryEntry
	for _, entry := range c.reviewerCandidates(pending.TaskID) {
		if entry.ID == reviewerID {
			e := entry
			reviewer = &e
			break
		}
	}
	if reviewer == nil {
		return false
	}
	c.pending.Review = nil

	task, from, ok := c.board.Task(pending.TaskID)
	if !ok {
		return true
	}
	next := domain.MoveTask(c.board, domain.MoveArgs{
		FromColumn: from,
		ToColumn:   domain.ColumnReview,
		TaskID:     pending.TaskID,
		ToIndex:    pending.TargetIndex,
	}, c.now())
	next = next.Update(pending.TaskID, func(t domain.Task) domain.Task {
		t.ReviewerID = reviewer.ID
		t.ReviewerName = reviewer.Name
		return t
	})
	c.apply(ctx, next)
	c.notify(c.factory.Create(c.actor.Name, task.Title, pending.PreviousColumn, domain.ColumnReview, reviewer.Name))
	return true
}

// CancelReviewer discards the reviewer choice and returns the task to where it came from.
func (c *Controller) CancelReviewer(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pending.Review
	if pending == nil {
		return false
	}
	c.pending.Review = nil
	c.moveBack(ctx, pending)
	return true
}

// BlockerCandidates lists every other task on the board.
func (c *Controller) BlockerCandidates() []BlockerOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Blocked == nil {
		return nil
	}
	return c.blockerCandidates(c.pending.Blocked.TaskID)
}

func (c *Controller) blockerCandidates(taskID string) []BlockerOption {
	tasks := c.board.Tasks()
	out := make([]BlockerOption, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == taskID {
			continue
		}
		out = append(out, BlockerOption{ID: t.ID, Title: t.Title})
	}
	return out
}

// ConfirmBlocker completes the pending blocked drop with the same selection
// rules as ConfirmReviewer. Blocking does not emit a notification.
func (c *Controller) ConfirmBlocker(ctx context.Context, blockerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pending.Blocked
	if pending == nil {
		return false
	}
	blockerID = strings.TrimSpace(blockerID)
	if blockerID == "" {
		c.pending.Blocked = nil
		c.moveBack(ctx, pending)
		return true
	}
	if blockerID == pending.TaskID {
		return false
	}
	blocker, _, ok := c.board.Task(blockerID)
	if !ok {
		return false
	}
	c.pending.Blocked = nil

	_, from, ok := c.board.Task(pending.TaskID)
	if !ok {
		return true
	}
	next := domain.MoveTask(c.board, domain.MoveArgs{
		FromColumn: from,
		ToColumn:   domain.ColumnBlocked,
		TaskID:     pending.TaskID,
		ToIndex:    pending.TargetIndex,
	}, c.now())
	next = next.Update(pending.TaskID, func(t domain.Task) domain.Task {
		t.BlockedByTaskID = blocker.ID
		t.BlockedByTaskTitle = blocker.Title
		return t
	})
	c.apply(ctx, next)
	return true
}

// CancelBlocker discards the blocker choice and returns the task to where it came from.
func (c *Controller) CancelBlocker(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pending.Blocked
	if pending == nil {
		return false
	}
	c.pending.Blocked = nil
	c.moveBack(ctx, pending)
	return true
}

// moveBack undoes a provisional drop. Guarded drops never land before
// confirmation, so this only moves a task that actually sits in the target lane.
func (c *Controller) moveBack(ctx context.Context, pending *PendingMove) {
	current, _, ok := c.board.Locate(pending.TaskID)
	if !ok || current != pending.TargetColumn || current == pending.PreviousColumn {
		return
	}
	c.apply(ctx, domain.MoveTask(c.board, domain.MoveArgs{
		FromColumn: current,
		ToColumn:   pending.PreviousColumn,
		TaskID:     pending.TaskID,
		ToIndex:    0,
	}, c.now()))
}

// CanApprove reports whether the actor is the designated reviewer of a task in review.
func (c *Controller) CanApprove(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canApprove(taskID)
}

func (c *Controller) canApprove(taskID string) bool {
	task, col, ok := c.board.Task(taskID)
	return ok && col == domain.ColumnReview && task.ReviewerID != "" && task.ReviewerID == c.actor.ID
}

// RequestApproval opens the approval confirmation.
func (c *Controller) RequestApproval(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Open() || !c.canApprove(taskID) {
		return false
	}
	c.pending.ApprovalTaskID = taskID
	return true
}

// ConfirmApproval emits the approval notification. The board is left as is.
func (c *Controller) ConfirmApproval() (domain.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	taskID := c.pending.ApprovalTaskID
	if taskID == "" {
		return domain.Notification{}, false
	}
	c.pending.ApprovalTaskID = ""
	if !c.canApprove(taskID) {
		return domain.Notification{}, false
	}
	task, col, _ := c.board.Task(taskID)
	reviewerName := task.ReviewerName
	if reviewerName == "" {
		reviewerName = c.actor.Name
	}
	n := c.factory.Approval(c.actor.Name, task.Title, col, reviewerName)
	c.notify(n)
	return n, true
}

// CancelApproval closes the approval confirmation without side effects.
func (c *Controller) CancelApproval() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.ApprovalTaskID == "" {
		return false
	}
	c.pending.ApprovalTaskID = ""
	return true
}

// CreateTask inserts a new card at the head of todo. A blank title is ignored.
func (c *Controller) CreateTask(ctx context.Context, input TaskInput) (domain.Task, bool) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return domain.Task{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	assignees := c.resolveAssignees(input.AssigneeIDs)
	task := domain.Task{
		ID:            c.newID(),
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		DueDate:       strings.TrimSpace(input.DueDate),
		Priority:      domain.NormalizePriority(input.Priority),
		AssigneeIDs:   assignees,
		AssigneeName:  c.nameOf(assignees[0]),
		CreatedByName: c.actor.Name,
	}
	c.apply(ctx, c.board.Insert(domain.ColumnTodo, 0, task))
	return task, true
}

// EditTask replaces the editable fields in place. Column and position are kept.
func (c *Controller) EditTask(ctx context.Context, id string, input TaskInput) (domain.Task, bool) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return domain.Task{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, _, ok := c.board.Locate(id); !ok {
		return domain.Task{}, false
	}
	assignees := c.resolveAssignees(input.AssigneeIDs)
	next := c.board.Update(id, func(t domain.Task) domain.Task {
		t.Title = title
		t.Description = strings.TrimSpace(input.Description)
		t.DueDate = strings.TrimSpace(input.DueDate)
		t.Priority = domain.NormalizePriority(input.Priority)
		t.AssigneeIDs = assignees
		t.AssigneeName = c.nameOf(assignees[0])
		return t
	})
	c.apply(ctx, next)
	task, _, _ := next.Task(id)
	return task, true
}

// DeleteTask removes the card from whichever lane holds it. References held
// by other cards through blockedByTaskId are left untouched.
func (c *Controller) DeleteTask(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, ok := c.board.Locate(id); !ok {
		return false
	}
	c.apply(ctx, c.board.Remove(id))
	if c.pending.ApprovalTaskID == id {
		c.pending.ApprovalTaskID = ""
	}
	if c.pending.Review != nil && c.pending.Review.TaskID == id {
		c.pending.Review = nil
	}
	if c.pending.Blocked != nil && c.pending.Blocked.TaskID == id {
		c.pending.Blocked = nil
	}
	return true
}

// TaskDetails looks a card up on the board, then in the tasks collection.
func (c *Controller) TaskDetails(ctx context.Context, id string) (domain.Task, domain.Column, error) {
	c.mu.Lock()
	task, col, ok := c.board.Task(id)
	c.mu.Unlock()
	if ok {
		return task, col, nil
	}

	var doc domain.TaskDocument
	if err := repository.LoadInto(ctx, c.store, repository.CollectionTasks, id, &doc); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return domain.Task{}, "", domain.ErrTaskNotFound
		}
		return domain.Task{}, "", err
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return doc.Card(), domain.ColumnForStatus(doc.Status), nil
}

// Notifications returns the feed, newest first.
func (c *Controller) Notifications() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Notification(nil), c.notifications...)
}

// MarkAsRead flags one notification as read.
func (c *Controller) MarkAsRead(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications[i].Read = true
			return true
		}
	}
	return false
}

// ClearNotifications drops the whole feed.
func (c *Controller) ClearNotifications() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = nil
}

func (c *Controller) notify(n domain.Notification) {
	c.notifications = append([]domain.Notification{n}, c.notifications...)
}

// apply installs next and persists it. Persistence failures are logged only.
func (c *Controller) apply(ctx context.Context, next domain.Board) {
	c.board = next
	c.persist(ctx)
}

func (c *Controller) persist(ctx context.Context) {
	state := c.board.State()
	payload, err := json.Marshal(state)
	if err != nil {
		c.logger.Warn("failed to encode board", zap.Error(err))
		return
	}
	if c.local != nil {
		if err := c.local.Set(usecase.BoardSnapshotKey(c.actor.ID), payload); err != nil {
			c.logger.Warn("failed to write local board snapshot", zap.Error(err))
		}
	}
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, repository.CollectionBoards, c.actor.ID, payload, true); err != nil {
		c.logger.Warn("failed to save board", zap.Error(err))
	}
}

// resolveAssignees keeps the explicit selection, else the first directory
// entry, else the signed-in user.
func (c *Controller) resolveAssignees(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > 0 {
		return out
	}
	if len(c.directory) > 0 {
		return []string{c.directory[0].ID}
	}
	return []string{c.actor.ID}
}

func (c *Controller) nameOf(id string) string {
	for _, entry := range c.directory {
		if entry.ID == id {
			return entry.Name
		}
	}
	if id == c.actor.ID {
		return c.actor.Name
	}
	return ""
}

func decodeDrag(payload string) (DragPayload, bool) {
	var drag DragPayload
	if err := json.Unmarshal([]byte(payload), &drag); err != nil {
		return DragPayload{}, false
	}
	if !drag.FromColumn.Valid() || strings.TrimSpace(drag.TaskID) == "" {
		return DragPayload{}, false
	}
	return drag, true
}

func mergeDirectory(entries []domain.DirectoryEntry, actor Actor) []domain.DirectoryEntry {
	out := make([]domain.DirectoryEntry, 0, len(entries)+1)
	seen := make(map[string]struct{}, len(entries)+1)
	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		if entry.ID == actor.ID && strings.TrimSpace(entry.Name) == "" {
			entry.Name = actor.Name
		}
		seen[entry.ID] = struct{}{}
		out = append(out, entry)
	}
	if _, ok := seen[actor.ID]; !ok && actor.ID != "" {
		out = append(out, domain.DirectoryEntry{ID: actor.ID, Name: actor.Name})
	}
	return out
}
