package memory

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

func decode(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestDocumentStoreMergePatch(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	if err := store.Save(ctx, repository.CollectionUsers, "u1", json.RawMessage(`{"displayName":"Ann Lee","email":"ann@example.com","prefs":{"theme":"dark","tags":["a","b"]}}`), false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, repository.CollectionUsers, "u1", json.RawMessage(`{"username":"ann","prefs":{"tags":["c"]}}`), true); err != nil {
		t.Fatalf("merge: %v", err)
	}

	raw, err := store.Load(ctx, repository.CollectionUsers, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]interface{}{
		"displayName": "Ann Lee",
		"email":       "ann@example.com",
		"username":    "ann",
		"prefs":       map[string]interface{}{"theme": "dark", "tags": []interface{}{"c"}},
	}
	if got := decode(t, raw); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected merged document %#v", got)
	}

	if err := store.Save(ctx, repository.CollectionUsers, "u1", json.RawMessage(`{"email":"new@example.com"}`), false); err != nil {
		t.Fatalf("replace: %v", err)
	}
	raw, _ = store.Load(ctx, repository.CollectionUsers, "u1")
	if got := decode(t, raw); !reflect.DeepEqual(got, map[string]interface{}{"email": "new@example.com"}) {
		t.Fatalf("replace kept stale fields: %#v", got)
	}
}

func TestDocumentStoreNotFoundAndList(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	if _, err := store.Load(ctx, repository.CollectionBoards, "missing"); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_ = repository.SaveValue(ctx, store, repository.CollectionTasks, "b", map[string]string{"title": "B"}, false)
	_ = repository.SaveValue(ctx, store, repository.CollectionTasks, "a", map[string]string{"title": "A"}, false)

	docs, err := store.List(ctx, repository.CollectionTasks)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Fatalf("unexpected list %+v", docs)
	}

	var task struct{ Title string }
	if err := repository.LoadInto(ctx, store, repository.CollectionTasks, "a", &task); err != nil || task.Title != "A" {
		t.Fatalf("load into: %v %+v", err, task)
	}
}
