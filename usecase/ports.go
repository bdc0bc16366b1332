package usecase

import "encoding/json"

// LocalStorage abstracts device-local key/value storage so use cases stay storage-agnostic.
// Get reports ok=false for missing keys.
type LocalStorage interface {
	Get(key string) (json.RawMessage, bool, error)
	Set(key string, value json.RawMessage) error
	Remove(key string) error
}

// Local storage keys.
const (
	KeyAuthToken     = "auth:token"
	KeyUsernamePfx   = "profile:username:"
	KeyImagePfx      = "profile:image:"
	KeyBoardSnapshot = "board:"
)

func UsernameKey(userID string) string { return KeyUsernamePfx + userID }
func ProfileImageKey(userID string) string { return KeyImagePfx + userID }
func BoardSnapshotKey(userID string) string { return KeyBoardSnapshot + userID }
