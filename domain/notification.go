package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Notification records one board event for the activity feed.
type Notification struct {
	ID           string `json:"id"`
	UserName     string `json:"userName"`
	UserInitial  string `json:"userInitial"`
	TaskTitle    string `json:"taskTitle"`
	FromStatus   Column `json:"fromStatus"`
	ToStatus     Column `json:"toStatus"`
	Timestamp    string `json:"timestamp"`
	Read         bool   `json:"read"`
	ReviewerName string `json:"reviewerName,omitempty"`
	IsApproval   bool   `json:"isApproval,omitempty"`
}

// NotificationFactory builds notification records. Zero values fall back to
// the wall clock and random UUIDs.
type NotificationFactory struct {
	Now   func() time.Time
	NewID func() string
}

// Create builds an unread transition notification.
func (f NotificationFactory) Create(actorName, taskTitle string, from, to Column, reviewerName string) Notification {
	return Notification{
		ID:           f.id(),
		UserName:     actorName,
		UserInitial:  Initial(actorName),
		TaskTitle:    taskTitle,
		FromStatus:   from,
		ToStatus:     to,
		Timestamp:    FormatTimestamp(f.now()),
		ReviewerName: reviewerName,
	}
}

// Approval builds the notification emitted when a reviewer approves a task in place.
func (f NotificationFactory) Approval(actorName, taskTitle string, column Column, reviewerName string) Notification {
	n := f.Create(actorName, taskTitle, column, column, reviewerName)
	n.IsApproval = true
	return n
}

func (f NotificationFactory) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f NotificationFactory) id() string {
	if f.NewID != nil {
		return f.NewID()
	}
	return "notification-" + uuid.NewString()
}

// Initial returns the upper-cased first character of the trimmed name, or "" for blank names.
func Initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}
