package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/repository/memory"
	"github.com/fastygo/taskboard/usecase"
)

var fixedNow = time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)

type mapStorage struct {
	data   map[string]json.RawMessage
	setErr error
}

func newMapStorage() *mapStorage {
	return &mapStorage{data: map[string]json.RawMessage{}}
}

func (m *mapStorage) Get(key string) (json.RawMessage, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStorage) Set(key string, value json.RawMessage) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *mapStorage) Remove(key string) error {
	delete(m.data, key)
	return nil
}

type faultyStore struct {
	repository.DocumentStore
	loadErr error
	saveErr error
	saves   int
}

func (s *faultyStore) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.DocumentStore.Load(ctx, collection, id)
}

func (s *faultyStore) Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.DocumentStore.Save(ctx, collection, id, patch, merge)
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func testOptions() Options {
	return Options{
		Now:               func() time.Time { return fixedNow },
		NewTaskID:         sequence("task"),
		NewNotificationID: sequence("n"),
	}
}

func seedStore(t *testing.T, board domain.Board, users map[string]string) *memory.DocumentStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewDocumentStore()
	if err := repository.SaveValue(ctx, store, repository.CollectionBoards, "alice-id", board.State(), false); err != nil {
		t.Fatalf("seed board: %v", err)
	}
	for id, name := range users {
		if err := repository.SaveValue(ctx, store, repository.CollectionUsers, id, domain.User{DisplayName: name}, false); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return store
}

func newTestController(t *testing.T, store repository.DocumentStore, actor Actor) (*Controller, *mapStorage) {
	t.Helper()
	local := newMapStorage()
	svc := NewService(store, local, testOptions(), nil)
	ctrl, err := svc.Controller(context.Background(), actor)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return ctrl, local
}

var alice = Actor{ID: "alice-id", Name: "Alice"}

func laneIDs(b domain.Board, c domain.Column) []string {
	lane := b.Column(c)
	out := make([]string, 0, len(lane))
	for _, t := range lane {
		out = append(out, t.ID)
	}
	return out
}

func TestReviewWorkflowScenario(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "Write outline"}},
	}), map[string]string{"bob-id": "Bob"})
	ctrl, _ := newTestController(t, store, alice)

	payload, ok := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	if !ok {
		t.Fatalf("begin drag failed")
	}
	if got := ctrl.DropOnColumn(ctx, payload, domain.ColumnReview); got != OutcomeReviewRequested {
		t.Fatalf("expected review request, got %s", got)
	}
	if got := laneIDs(ctrl.Board(), domain.ColumnTodo); !reflect.DeepEqual(got, []string{"T1"}) {
		t.Fatalf("move must be suspended, todo=%v", got)
	}
	if len(ctrl.Notifications()) != 0 {
		t.Fatalf("suspended move must not notify")
	}

	candidates := ctrl.ReviewerCandidates()
	if len(candidates) != 2 {
		t.Fatalf("expected bob and alice as candidates, got %+v", candidates)
	}

	if !ctrl.ConfirmReviewer(ctx, "bob-id") {
		t.Fatalf("confirm should close the workflow")
	}
	board := ctrl.Board()
	if got := laneIDs(board, domain.ColumnReview); !reflect.DeepEqual(got, []string{"T1"}) {
		t.Fatalf("expected T1 in review, got %v", got)
	}
	task, _, _ := board.Task("T1")
	if task.ReviewerID != "bob-id" || task.ReviewerName != "Bob" {
		t.Fatalf("reviewer not stamped: %+v", task)
	}

	notes := ctrl.Notifications()
	want := domain.Notification{
		ID:           "n-1",
		UserName:     "Alice",
		UserInitial:  "A",
		TaskTitle:    "Write outline",
		FromStatus:   domain.ColumnTodo,
		ToStatus:     domain.ColumnReview,
		Timestamp:    "2024-05-02T10:30:00.000Z",
		ReviewerName: "Bob",
	}
	if len(notes) != 1 || !reflect.DeepEqual(notes[0], want) {
		t.Fatalf("unexpected notifications %+v", notes)
	}

	var stored domain.BoardState
	if err := repository.LoadInto(ctx, store, repository.CollectionBoards, "alice-id", &stored); err != nil {
		t.Fatalf("load stored board: %v", err)
	}
	if len(stored.Review) != 1 || stored.Review[0].ReviewerName != "Bob" || len(stored.Todo) != 0 {
		t.Fatalf("board not persisted: %+v", stored)
	}
}

func TestReviewerCandidatesExcludeAssignees(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnInProgress: {{ID: "T1", Title: "x", AssigneeIDs: []string{"alice-id"}}},
	}), map[string]string{"bob-id": "Bob", "carol-id": "Carol"})
	ctrl, _ := newTestController(t, store, alice)

	payload, _ := ctrl.BeginDrag(domain.ColumnInProgress, "T1")
	ctrl.DropOnColumn(ctx, payload, domain.ColumnReview)

	for _, c := range ctrl.ReviewerCandidates() {
		if c.ID == "alice-id" {
			t.Fatalf("assignee offered as reviewer")
		}
	}
	if ctrl.ConfirmReviewer(ctx, "alice-id") {
		t.Fatalf("assignee must not be accepted as reviewer")
	}
	if ctrl.Pending().Review == nil {
		t.Fatalf("invalid selection must keep the workflow open")
	}
}

func TestReviewConfirmWithoutSelectionActsAsCancel(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "x"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)
	before := ctrl.Board().State()

	payload, _ := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	ctrl.DropOnColumn(ctx, payload, domain.ColumnReview)
	if !ctrl.ConfirmReviewer(ctx, "  ") {
		t.Fatalf("empty confirm should close the workflow")
	}
	if ctrl.Pending().Open() {
		t.Fatalf("workflow still open")
	}
	if !reflect.DeepEqual(ctrl.Board().State(), before) || len(ctrl.Notifications()) != 0 {
		t.Fatalf("empty confirm must not mutate anything")
	}
}

func TestBlockedWorkflowConfirmAndCancel(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo:       {{ID: "T1", Title: "Write outline"}},
		domain.ColumnInProgress: {{ID: "T2", Title: "Design"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)

	payload, _ := ctrl.BeginDrag(domain.ColumnInProgress, "T2")
	if got := ctrl.DropOnColumn(ctx, payload, domain.ColumnBlocked); got != OutcomeBlockRequested {
		t.Fatalf("expected block request, got %s", got)
	}
	if got := ctrl.BlockerCandidates(); !reflect.DeepEqual(got, []BlockerOption{{ID: "T1", Title: "Write outline"}}) {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if ctrl.ConfirmBlocker(ctx, "T2") || ctrl.ConfirmBlocker(ctx, "missing") {
		t.Fatalf("self or unknown blocker must be rejected")
	}
	if !ctrl.CancelBlocker(ctx) {
		t.Fatalf("cancel failed")
	}
	if got := laneIDs(ctrl.Board(), domain.ColumnInProgress); !reflect.DeepEqual(got, []string{"T2"}) {
		t.Fatalf("cancel must leave T2 in its previous lane, got %v", got)
	}

	payload, _ = ctrl.BeginDrag(domain.ColumnInProgress, "T2")
	ctrl.DropOnColumn(ctx, payload, domain.ColumnBlocked)
	if !ctrl.ConfirmBlocker(ctx, "T1") {
		t.Fatalf("confirm failed")
	}
	task, col, _ := ctrl.Board().Task("T2")
	if col != domain.ColumnBlocked || task.BlockedByTaskID != "T1" || task.BlockedByTaskTitle != "Write outline" {
		t.Fatalf("blocker not recorded: %+v in %s", task, col)
	}
	if len(ctrl.Notifications()) != 0 {
		t.Fatalf("blocking must not notify")
	}

	payload, _ = ctrl.BeginDrag(domain.ColumnBlocked, "T2")
	if got := ctrl.DropOnColumn(ctx, payload, domain.ColumnTodo); got != OutcomeMoved {
		t.Fatalf("expected move, got %s", got)
	}
	task, _, _ = ctrl.Board().Task("T2")
	if task.BlockedByTaskID != "" {
		t.Fatalf("blocker must clear when leaving blocked: %+v", task)
	}
}

func TestDropsIgnoredWhileWorkflowOpen(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "a"}, {ID: "T2", Title: "b"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)

	p1, _ := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	ctrl.DropOnColumn(ctx, p1, domain.ColumnReview)

	p2, _ := ctrl.BeginDrag(domain.ColumnTodo, "T2")
	if got := ctrl.DropOnColumn(ctx, p2, domain.ColumnCompleted); got != OutcomeIgnored {
		t.Fatalf("expected drop ignored, got %s", got)
	}
	if ctrl.RequestApproval("T1") {
		t.Fatalf("approval must not open over another workflow")
	}
}

func TestNormalMoveNotifiesAndReorderDoesNot(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "a"}, {ID: "T2", Title: "b"}, {ID: "T3", Title: "c"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)

	payload, _ := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	if got := ctrl.DropOnCard(ctx, payload, domain.ColumnTodo, 2); got != OutcomeReordered {
		t.Fatalf("expected reorder, got %s", got)
	}
	if got := laneIDs(ctrl.Board(), domain.ColumnTodo); !reflect.DeepEqual(got, []string{"T2", "T3", "T1"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if len(ctrl.Notifications()) != 0 {
		t.Fatalf("reorder must not notify")
	}

	payload, _ = ctrl.BeginDrag(domain.ColumnTodo, "T3")
	if got := ctrl.DropOnColumn(ctx, payload, domain.ColumnCompleted); got != OutcomeMoved {
		t.Fatalf("expected move, got %s", got)
	}
	task, _, _ := ctrl.Board().Task("T3")
	if task.ClosedAt != domain.FormatTimestamp(fixedNow) {
		t.Fatalf("expected closedAt stamp, got %q", task.ClosedAt)
	}
	notes := ctrl.Notifications()
	if len(notes) != 1 || notes[0].FromStatus != domain.ColumnTodo || notes[0].ToStatus != domain.ColumnCompleted || notes[0].ReviewerName != "" {
		t.Fatalf("unexpected notifications %+v", notes)
	}
}

func TestCompletedTaskDraggedBackLosesClosedAt(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnCompleted: {{ID: "T1", Title: "Write outline", ClosedAt: "2024-01-01T00:00:00Z"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)

	payload, _ := ctrl.BeginDrag(domain.ColumnCompleted, "T1")
	ctrl.DropOnColumn(ctx, payload, domain.ColumnTodo)
	task, col, _ := ctrl.Board().Task("T1")
	if col != domain.ColumnTodo || task.ClosedAt != "" {
		t.Fatalf("expected cleared closedAt in todo, got %+v in %s", task, col)
	}
}

func TestMalformedOrStaleDragIgnored(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "a"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)
	before := ctrl.Board().State()

	for _, payload := range []string{"", "{", `{"fromColumn":"nowhere","taskId":"T1"}`, `{"fromColumn":"in_progress","taskId":"T1"}`, `{"fromColumn":"todo","taskId":"ghost"}`} {
		if got := ctrl.DropOnColumn(ctx, payload, domain.ColumnCompleted); got != OutcomeIgnored {
			t.Fatalf("payload %q: expected ignored, got %s", payload, got)
		}
	}
	payload, _ := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	if got := ctrl.DropOnColumn(ctx, payload, domain.Column("archive")); got != OutcomeIgnored {
		t.Fatalf("unknown target must be ignored, got %s", got)
	}
	if !reflect.DeepEqual(ctrl.Board().State(), before) {
		t.Fatalf("board changed")
	}
}

func TestApprovalScenario(t *testing.T) {
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnReview: {{ID: "T1", Title: "Write outline", ReviewerID: "bob-id", ReviewerName: "Bob"}},
	}), map[string]string{"alice-id": "Alice"})

	bob := Actor{ID: "bob-id", Name: "Bob"}
	svc := NewService(store, newMapStorage(), testOptions(), nil)
	ctrlAlice, _ := svc.Controller(context.Background(), alice)
	if ctrlAlice.CanApprove("T1") || ctrlAlice.RequestApproval("T1") {
		t.Fatalf("only the reviewer may approve")
	}

	// Bob's controller reads the same stored board under his own id.
	state := ctrlAlice.Board().State()
	if err := repository.SaveValue(context.Background(), store, repository.CollectionBoards, "bob-id", state, false); err != nil {
		t.Fatalf("copy board: %v", err)
	}
	ctrl, err := svc.Controller(context.Background(), bob)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	before := ctrl.Board().State()

	if snap := ctrl.Snapshot(); !snap.Approvable["T1"] || snap.Pending.Open() {
		t.Fatalf("reviewer snapshot should allow approval: %+v", snap)
	}
	if !ctrl.RequestApproval("T1") {
		t.Fatalf("reviewer should be able to request approval")
	}
	if snap := ctrl.Snapshot(); snap.Pending.ApprovalTaskID != "T1" || len(snap.Board.Column(domain.ColumnReview)) != 1 {
		t.Fatalf("snapshot must carry the open approval: %+v", snap.Pending)
	}
	if !ctrl.CancelApproval() || ctrl.Pending().Open() {
		t.Fatalf("cancel should close the confirmation")
	}
	if len(ctrl.Notifications()) != 0 {
		t.Fatalf("cancelled approval must not notify")
	}

	ctrl.RequestApproval("T1")
	n, ok := ctrl.ConfirmApproval()
	if !ok {
		t.Fatalf("confirm failed")
	}
	if !n.IsApproval || n.FromStatus != domain.ColumnReview || n.ToStatus != domain.ColumnReview || n.ReviewerName != "Bob" {
		t.Fatalf("unexpected approval %+v", n)
	}
	if !reflect.DeepEqual(ctrl.Board().State(), before) {
		t.Fatalf("approval must not change the board")
	}
	if notes := ctrl.Notifications(); len(notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notes))
	}
}

func TestCreateEditDeleteTask(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo:    {{ID: "T1", Title: "a"}},
		domain.ColumnBlocked: {{ID: "T2", Title: "b", BlockedByTaskID: "T1", BlockedByTaskTitle: "a"}},
	}), map[string]string{"bob-id": "Bob"})
	ctrl, _ := newTestController(t, store, alice)

	if _, ok := ctrl.CreateTask(ctx, TaskInput{Title: "   "}); ok {
		t.Fatalf("blank title must be rejected")
	}

	created, ok := ctrl.CreateTask(ctx, TaskInput{Title: "  New card ", Priority: "urgent"})
	if !ok {
		t.Fatalf("create failed")
	}
	if created.ID != "task-1" || created.Title != "New card" || created.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected task %+v", created)
	}
	if !reflect.DeepEqual(created.AssigneeIDs, []string{"bob-id"}) || created.AssigneeName != "Bob" || created.CreatedByName != "Alice" {
		t.Fatalf("unexpected assignment %+v", created)
	}
	if got := laneIDs(ctrl.Board(), domain.ColumnTodo); !reflect.DeepEqual(got, []string{"task-1", "T1"}) {
		t.Fatalf("new task must lead todo, got %v", got)
	}

	edited, ok := ctrl.EditTask(ctx, "T1", TaskInput{Title: "a2", Priority: domain.PriorityHigh, AssigneeIDs: []string{"alice-id", "alice-id", ""}})
	if !ok || edited.Title != "a2" || edited.Priority != domain.PriorityHigh || !reflect.DeepEqual(edited.AssigneeIDs, []string{"alice-id"}) || edited.AssigneeName != "Alice" {
		t.Fatalf("unexpected edit %+v", edited)
	}
	if got := laneIDs(ctrl.Board(), domain.ColumnTodo); !reflect.DeepEqual(got, []string{"task-1", "T1"}) {
		t.Fatalf("edit must keep position, got %v", got)
	}
	if _, ok := ctrl.EditTask(ctx, "ghost", TaskInput{Title: "x"}); ok {
		t.Fatalf("editing a missing task must fail")
	}

	if !ctrl.DeleteTask(ctx, "T1") || ctrl.DeleteTask(ctx, "T1") {
		t.Fatalf("delete should succeed exactly once")
	}
	blocked, _, _ := ctrl.Board().Task("T2")
	if blocked.BlockedByTaskID != "T1" {
		t.Fatalf("blocker reference should be left dangling, got %+v", blocked)
	}
}

func TestCreateTaskFallsBackToSessionUser(t *testing.T) {
	ctrl, _ := newTestController(t, seedStore(t, domain.NewBoard(), nil), alice)
	created, ok := ctrl.CreateTask(context.Background(), TaskInput{Title: "x"})
	if !ok || !reflect.DeepEqual(created.AssigneeIDs, []string{"alice-id"}) || created.AssigneeName != "Alice" {
		t.Fatalf("expected session user assignment, got %+v", created)
	}
}

func TestSaveFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	base := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "a"}},
	}), nil)
	store := &faultyStore{DocumentStore: base, saveErr: errors.New("offline")}
	ctrl, local := newTestController(t, store, alice)

	payload, _ := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	if got := ctrl.DropOnColumn(ctx, payload, domain.ColumnInProgress); got != OutcomeMoved {
		t.Fatalf("expected move despite store failure, got %s", got)
	}
	if store.saves == 0 {
		t.Fatalf("expected a save attempt")
	}
	if _, col, _ := ctrl.Board().Task("T1"); col != domain.ColumnInProgress {
		t.Fatalf("local state must stay authoritative")
	}
	if _, ok := local.data[usecase.BoardSnapshotKey("alice-id")]; !ok {
		t.Fatalf("expected local snapshot")
	}
}

func TestLoadFallsBackToLocalSnapshot(t *testing.T) {
	local := newMapStorage()
	snapshot := domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnReview: {{ID: "S1", Title: "cached"}},
	})
	raw, _ := json.Marshal(snapshot.State())
	local.data[usecase.BoardSnapshotKey("alice-id")] = raw

	store := &faultyStore{DocumentStore: memory.NewDocumentStore(), loadErr: errors.New("timeout")}
	svc := NewService(store, local, testOptions(), nil)
	ctrl, err := svc.Controller(context.Background(), alice)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if got := laneIDs(ctrl.Board(), domain.ColumnReview); !reflect.DeepEqual(got, []string{"S1"}) {
		t.Fatalf("expected snapshot board, got %v", got)
	}

	again, _ := svc.Controller(context.Background(), alice)
	if again != ctrl {
		t.Fatalf("controllers must be cached per user")
	}
}

func TestCorruptSnapshotIsDiscarded(t *testing.T) {
	local := newMapStorage()
	local.data[usecase.BoardSnapshotKey("alice-id")] = json.RawMessage(`{"todo":"nope"`)

	store := &faultyStore{DocumentStore: memory.NewDocumentStore(), loadErr: errors.New("timeout")}
	svc := NewService(store, local, testOptions(), nil)
	ctrl, _ := svc.Controller(context.Background(), alice)
	if ctrl.Board().Len() != 0 {
		t.Fatalf("expected empty seeded board")
	}
	if raw, ok := local.data[usecase.BoardSnapshotKey("alice-id")]; ok && string(raw) == `{"todo":"nope"` {
		t.Fatalf("corrupt snapshot must be replaced")
	}
}

func TestSeedFromTasksCollection(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	statuses := []string{"todo", "in_progress", "done", "completed", "archived", "todo", "todo", "todo", "todo", "todo"}
	for i, status := range statuses {
		doc := domain.TaskDocument{Title: fmt.Sprintf("task %d", i), Status: status}
		if err := repository.SaveValue(ctx, store, repository.CollectionTasks, fmt.Sprintf("t%02d", i), doc, false); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	ctrl, _ := newTestController(t, store, alice)
	board := ctrl.Board()
	if board.Len() != 9 {
		t.Fatalf("expected 9 seeded tasks, got %d", board.Len())
	}
	if got := laneIDs(board, domain.ColumnCompleted); !reflect.DeepEqual(got, []string{"t02", "t03"}) {
		t.Fatalf("unexpected completed lane %v", got)
	}
	if got := laneIDs(board, domain.ColumnInProgress); !reflect.DeepEqual(got, []string{"t01"}) {
		t.Fatalf("unexpected in progress lane %v", got)
	}
	task, col, _ := board.Task("t04")
	if col != domain.ColumnTodo || task.Priority != domain.PriorityMedium {
		t.Fatalf("unknown status should land in todo: %+v in %s", task, col)
	}

	var stored domain.BoardState
	if err := repository.LoadInto(ctx, store, repository.CollectionBoards, "alice-id", &stored); err != nil {
		t.Fatalf("seeded board must be persisted: %v", err)
	}
}

func TestTaskDetailsLookup(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "on board"}},
	}), nil)
	_ = repository.SaveValue(ctx, store, repository.CollectionTasks, "R1", domain.TaskDocument{Title: "remote", Status: "done"}, false)
	ctrl, _ := newTestController(t, store, alice)

	task, col, err := ctrl.TaskDetails(ctx, "T1")
	if err != nil || task.Title != "on board" || col != domain.ColumnTodo {
		t.Fatalf("board lookup: %+v %s %v", task, col, err)
	}
	task, col, err = ctrl.TaskDetails(ctx, "R1")
	if err != nil || task.ID != "R1" || task.Title != "remote" || col != domain.ColumnCompleted {
		t.Fatalf("collection lookup: %+v %s %v", task, col, err)
	}
	if _, _, err := ctrl.TaskDetails(ctx, "ghost"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNotificationFeed(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, domain.BoardFromColumns(map[domain.Column][]domain.Task{
		domain.ColumnTodo: {{ID: "T1", Title: "a"}, {ID: "T2", Title: "b"}},
	}), nil)
	ctrl, _ := newTestController(t, store, alice)

	p1, _ := ctrl.BeginDrag(domain.ColumnTodo, "T1")
	ctrl.DropOnColumn(ctx, p1, domain.ColumnInProgress)
	p2, _ := ctrl.BeginDrag(domain.ColumnTodo, "T2")
	ctrl.DropOnColumn(ctx, p2, domain.ColumnRejected)

	notes := ctrl.Notifications()
	if len(notes) != 2 || notes[0].TaskTitle != "b" {
		t.Fatalf("expected newest first, got %+v", notes)
	}
	if !ctrl.MarkAsRead(notes[1].ID) || ctrl.MarkAsRead("missing") {
		t.Fatalf("mark as read mismatch")
	}
	if got := ctrl.Notifications(); !got[1].Read || got[0].Read {
		t.Fatalf("unexpected read flags %+v", got)
	}
	ctrl.ClearNotifications()
	if len(ctrl.Notifications()) != 0 {
		t.Fatalf("expected empty feed")
	}
}

type blockingStore struct {
	repository.DocumentStore
	slowID  string
	entered chan struct{}
	release chan struct{}
	loads   int
	mu      sync.Mutex
}

func (s *blockingStore) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if collection == repository.CollectionBoards && id == s.slowID {
		s.mu.Lock()
		s.loads++
		s.mu.Unlock()
		s.entered <- struct{}{}
		<-s.release
	}
	return s.DocumentStore.Load(ctx, collection, id)
}

func TestSlowLoadDoesNotBlockOtherUsers(t *testing.T) {
	store := &blockingStore{
		DocumentStore: seedStore(t, domain.NewBoard(), nil),
		slowID:        "slow-id",
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	svc := NewService(store, nil, testOptions(), nil)
	slow := Actor{ID: "slow-id", Name: "Slow"}

	results := make(chan *Controller, 2)
	go func() {
		ctrl, _ := svc.Controller(context.Background(), slow)
		results <- ctrl
	}()
	<-store.entered

	done := make(chan *Controller, 1)
	go func() {
		ctrl, _ := svc.Controller(context.Background(), alice)
		done <- ctrl
	}()
	select {
	case ctrl := <-done:
		if ctrl == nil || ctrl.Actor() != alice {
			t.Fatalf("unexpected controller for alice")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("another user's load blocked this call")
	}

	go func() {
		ctrl, _ := svc.Controller(context.Background(), slow)
		results <- ctrl
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	first, second := <-results, <-results
	if first == nil || first != second {
		t.Fatalf("concurrent first calls must share one controller")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.loads != 1 {
		t.Fatalf("expected a single board load, got %d", store.loads)
	}
}

func TestActorRenameIsSynchronized(t *testing.T) {
	store := seedStore(t, domain.NewBoard(), nil)
	svc := NewService(store, nil, testOptions(), nil)
	ctrl, err := svc.Controller(context.Background(), alice)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = ctrl.Actor()
			_ = ctrl.Snapshot()
		}()
		go func(n int) {
			defer wg.Done()
			_, _ = svc.Controller(context.Background(), Actor{ID: alice.ID, Name: fmt.Sprintf("Alice %d", n)})
		}(i)
	}
	wg.Wait()

	if _, err := svc.Controller(context.Background(), Actor{ID: alice.ID, Name: "Alice Lee"}); err != nil {
		t.Fatalf("controller: %v", err)
	}
	if got := ctrl.Actor(); got.ID != alice.ID || got.Name != "Alice Lee" {
		t.Fatalf("unexpected actor %+v", got)
	}
}
