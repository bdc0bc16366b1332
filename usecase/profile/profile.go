package profile

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// Toast messages shown after a successful save.
const (
	MsgUsernameSaved = "Username changes have been saved successfully"
	MsgImageSaved    = "Profile photo changes have been saved successfully"
	MsgProfileSaved  = "Profile changes have been saved successfully"
	MsgPasswordSaved = "Password changes have been saved successfully"
)

// PasswordManager is the slice of the identity provider the settings page needs.
type PasswordManager interface {
	Reauthenticate(ctx context.Context, userID, email, currentPassword string) error
	ChangePassword(ctx context.Context, userID, newPassword string) error
	RevokeOtherSessions(ctx context.Context, userID, keepSessionID string) (int, error)
}

// Profile is the settings page view of a user.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Image       string `json:"profileImage"`
	Initials    string `json:"initials"`
	Completion  int    `json:"completion"`
}

type UseCase struct {
	store     repository.DocumentStore
	local     usecase.LocalStorage
	passwords PasswordManager
	logger    *zap.Logger
}

func New(store repository.DocumentStore, local usecase.LocalStorage, passwords PasswordManager, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		store:     store,
		local:     local,
		passwords: passwords,
		logger:    logger,
	}
}

// GetProfile prefers locally cached username and image over the stored profile.
func (uc *UseCase) GetProfile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, domain.ErrUnauthorized
	}

	var user domain.User
	if err := repository.LoadInto(ctx, uc.store, repository.CollectionUsers, userID, &user); err != nil {
		if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			uc.logger.Warn("failed to load profile", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if cached, ok := uc.cachedString(usecase.UsernameKey(userID)); ok {
		user.Username = cached
	}
	if cached, ok := uc.cachedString(usecase.ProfileImageKey(userID)); ok {
		user.ProfileImage = cached
	}

	first, last := domain.SplitDisplayName(user.DisplayName)
	p := Profile{
		UserID:      userID,
		DisplayName: user.DisplayName,
		FirstName:   first,
		LastName:    last,
		Email:       user.Email,
		Username:    user.Username,
		Image:       user.ProfileImage,
	}
	p.Initials = initials(p)
	p.Completion = completion(p)
	return p, nil
}

// SaveProfile stores username and image and returns the toast to show.
// Store failures are logged and do not fail the save.
func (uc *UseCase) SaveProfile(ctx context.Context, userID, username, image string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	current, err := uc.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}

	username = strings.TrimSpace(username)
	usernameChanged := username != current.Username
	imageChanged := image != current.Image

	// An empty username is cached as "" so the stored name does not resurface.
	uc.cache(usecase.UsernameKey(userID), username, true)
	uc.cache(usecase.ProfileImageKey(userID), image, false)

	patch := map[string]interface{}{"profileImage": image, "username": nil}
	if username != "" {
		patch["username"] = username
	}
	if err := repository.SaveValue(ctx, uc.store, repository.CollectionUsers, userID, patch, true); err != nil {
		uc.logger.Warn("failed to save profile", zap.String("user_id", userID), zap.Error(err))
	}

	switch {
	case usernameChanged && !imageChanged:
		return MsgUsernameSaved, nil
	case imageChanged && !usernameChanged:
		return MsgImageSaved, nil
	default:
		return MsgProfileSaved, nil
	}
}

// VerifyCurrentPassword reauthenticates before a password change.
func (uc *UseCase) VerifyCurrentPassword(ctx context.Context, userID, email, current string) error {
	if err := uc.passwords.Reauthenticate(ctx, userID, email, current); err != nil {
		uc.logger.Info("current password rejected", zap.String("user_id", userID), zap.Error(err))
		return domain.WrapError(domain.ErrCodeUnauthorized, domain.MsgIncorrectPassword, err)
	}
	return nil
}

// ChangePassword requires matching non-empty passwords and returns the toast to show.
// Other sessions of the user are signed out; sessionID stays signed in.
func (uc *UseCase) ChangePassword(ctx context.Context, userID, sessionID, next, confirm string) (string, error) {
	if next == "" || next != confirm {
		return "", domain.NewError(domain.ErrCodeInvalid, "passwords do not match")
	}
	if err := uc.passwords.ChangePassword(ctx, userID, next); err != nil {
		uc.logger.Warn("password change failed", zap.String("user_id", userID), zap.Error(err))
		return "", domain.WrapError(domain.ErrCodeInvalid, domain.MsgPasswordChangeFailed, err)
	}
	if _, err := uc.passwords.RevokeOtherSessions(ctx, userID, sessionID); err != nil {
		uc.logger.Warn("failed to revoke other sessions", zap.String("user_id", userID), zap.Error(err))
	}
	return MsgPasswordSaved, nil
}

func (uc *UseCase) cachedString(key string) (string, bool) {
	if uc.local == nil {
		return "", false
	}
	raw, ok, err := uc.local.Get(key)
	if err != nil || !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

func (uc *UseCase) cache(key, value string, keepEmpty bool) {
	if uc.local == nil {
		return
	}
	var err error
	if value == "" && !keepEmpty {
		err = uc.local.Remove(key)
	} else {
		raw, _ := json.Marshal(value)
		err = uc.local.Set(key, raw)
	}
	if err != nil {
		uc.logger.Warn("failed to update local profile cache", zap.String("key", key), zap.Error(err))
	}
}

func initials(p Profile) string {
	var b strings.Builder
	for _, part := range []string{p.FirstName, p.LastName} {
		if r, ok := firstLetter(part); ok {
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	for _, fallback := range []string{p.Username, p.Email} {
		if r, ok := firstLetter(fallback); ok {
			return string(r)
		}
	}
	return "U"
}

func firstLetter(s string) (rune, bool) {
	for _, r := range strings.TrimSpace(s) {
		return unicode.ToUpper(r), true
	}
	return 0, false
}

func completion(p Profile) int {
	filled := 0
	for _, field := range []string{p.FirstName, p.LastName, p.Username, p.Email, p.Image} {
		if strings.TrimSpace(field) != "" {
			filled++
		}
	}
	return filled * 100 / 5
}
