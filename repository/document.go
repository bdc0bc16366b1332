package repository

import (
	"context"
	"encoding/json"
	"errors"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ErrInvalidDocument reports a patch that is not valid JSON.
var ErrInvalidDocument = errors.New("invalid document")

var emptyDocument = json.RawMessage(`{}`)

// Collections used by the board client.
const (
	CollectionUsers       = "users"
	CollectionBoards      = "boards"
	CollectionTasks       = "tasks"
	CollectionCredentials = "credentials"
)

// Document is one stored JSON object.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// DocumentStore is the generic get/set/list port of the managed document database.
// Load returns domain.ErrDocumentNotFound for missing documents.
type DocumentStore interface {
	Load(ctx context.Context, collection, id string) (json.RawMessage, error)
	Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error
	List(ctx context.Context, collection string) ([]Document, error)
}

// MergeDocuments applies patch onto base with JSON merge-patch rules:
// objects merge key by key, null removes a key and every other value
// (arrays included) replaces what was there. An empty base starts from {}.
func MergeDocuments(base, patch json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(patch) {
		return nil, ErrInvalidDocument
	}
	if len(base) == 0 {
		base = emptyDocument
	}
	merged, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(merged), nil
}

// LoadInto loads a document and decodes it into out.
func LoadInto(ctx context.Context, store DocumentStore, collection, id string, out interface{}) error {
	raw, err := store.Load(ctx, collection, id)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// SaveValue encodes value and saves it.
func SaveValue(ctx context.Context, store DocumentStore, collection, id string, value interface{}, merge bool) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Save(ctx, collection, id, payload, merge)
}
