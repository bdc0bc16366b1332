package domain

import (
	"strings"
	"time"
)

// User is the profile document stored in users/{id}.
type User struct {
	ID           string `json:"id,omitempty"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Entry projects the user into the board's name directory.
func (u User) Entry() DirectoryEntry {
	return DirectoryEntry{ID: u.ID, Name: u.DisplayName}
}

// DirectoryEntry is an id/name pair used only for display-name resolution.
type DirectoryEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Identity is what a successful sign-in hands back to the caller.
type Identity struct {
	UserID      string `json:"userId"`
	Token       string `json:"token"`
	SessionID   string `json:"sessionId,omitempty"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Credential is the stored secret for email/password sign-in, keyed by lowercased email.
type Credential struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail lowercases and trims an email address for use as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitDisplayName splits a display name into first and last name on whitespace.
func SplitDisplayName(displayName string) (string, string) {
	parts := strings.Fields(displayName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
