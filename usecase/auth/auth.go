package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

const minPasswordLength = 6

// Options tune the identity use case.
type Options struct {
	SessionTTL time.Duration
	BcryptCost int
	Verifiers  map[string]TokenVerifier
}

type UseCase struct {
	store     repository.DocumentStore
	sessions  repository.SessionRepository
	tokens    *TokenIssuer
	verifiers map[string]TokenVerifier
	ttl       time.Duration
	cost      int
	now       func() time.Time
	logger    *zap.Logger
}

func New(store repository.DocumentStore, sessions repository.SessionRepository, tokens *TokenIssuer, opts Options, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	verifiers := make(map[string]TokenVerifier, len(opts.Verifiers))
	for name, v := range opts.Verifiers {
		verifiers[strings.ToLower(name)] = v
	}
	return &UseCase{
		store:     store,
		sessions:  sessions,
		tokens:    tokens,
		verifiers: verifiers,
		ttl:       opts.SessionTTL,
		cost:      opts.BcryptCost,
		now:       time.Now,
		logger:    logger,
	}
}

// RegisterInput holds the sign-up form.
type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// Register creates credentials and a profile, then signs the user in.
func (uc *UseCase) Register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") || in.Password == "" {
		return nil, domain.ErrInvalidPayload
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	_, err := uc.store.Load(ctx, repository.CollectionCredentials, email)
	switch {
	case err == nil:
		return nil, domain.ErrEmailTaken
	case !domain.IsDomainError(err, domain.ErrCodeNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cost)
	if err != nil {
		return nil, err
	}

	user := domain.User{
		ID:          uuid.NewString(),
		DisplayName: strings.TrimSpace(strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName)),
		Email:       email,
		Username:    strings.TrimSpace(in.Username),
	}
	if user.DisplayName == "" {
		user.DisplayName = email
	}

	cred := domain.Credential{UserID: user.ID, Email: email, PasswordHash: string(hash), UpdatedAt: uc.now().UTC()}
	if err := repository.SaveValue(ctx, uc.store, repository.CollectionCredentials, email, cred, false); err != nil {
		return nil, err
	}
	if err := uc.saveUser(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("user registered", zap.String("user_id", user.ID))
	return uc.openSession(ctx, user, domain.Password)
}

// SignIn accepts an email or a username. Usernames are resolved to an email through the users directory.
func (uc *UseCase) SignIn(ctx context.Context, identifier, password string) (*domain.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, domain.ErrInvalidCredential
	}

	email := identifier
	if !strings.Contains(identifier, "@") {
		resolved, err := uc.emailForUsername(ctx, identifier)
		if err != nil {
			return nil, err
		}
		email = resolved
	}

	cred, err := uc.checkPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user := uc.loadUser(ctx, cred.UserID)
	if user.Email == "" {
		user.Email = cred.Email
	}
	return uc.openSession(ctx, user, domain.Password)
}

// SignInWithOAuth verifies a provider ID token and signs in the matching user,
// creating the profile on first use.
func (uc *UseCase) SignInWithOAuth(ctx context.Context, provider, idToken string) (*domain.Identity, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	verifier, ok := uc.verifiers[provider]
	if !ok {
		return nil, domain.NewError(domain.ErrCodeInvalid, "unsupported oauth provider")
	}
	claims, err := verifier.Verify(ctx, idToken)
	if err != nil {
		uc.logger.Warn("oauth token rejected", zap.String("provider", provider), zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid oauth token", err)
	}

	userID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(provider+"|"+claims.Subject)).String()
	user := uc.loadUser(ctx, userID)
	user.ID = userID
	if name := strings.TrimSpace(claims.Name); name != "" {
		user.DisplayName = name
	}
	if claims.Email != "" {
		user.Email = domain.NormalizeEmail(claims.Email)
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Email
	}
	if err := uc.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return uc.openSession(ctx, user, provider)
}

// Reauthenticate confirms the current password of userID before a sensitive change.
func (uc *UseCase) Reauthenticate(ctx context.Context, userID, email, currentPassword string) error {
	if email == "" {
		email = uc.loadUser(ctx, userID).Email
	}
	cred, err := uc.checkPassword(ctx, email, currentPassword)
	if err != nil {
		return err
	}
	if cred.UserID != userID {
		return domain.ErrInvalidCredential
	}
	return nil
}

// ChangePassword replaces the stored password hash of userID.
func (uc *UseCase) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	user := uc.loadUser(ctx, userID)
	email := domain.NormalizeEmail(user.Email)
	if email == "" {
		return domain.ErrUserNotFound
	}

	var cred domain.Credential
	if err := repository.LoadInto(ctx, uc.store, repository.CollectionCredentials, email, &cred); err != nil {
		return err
	}
	if cred.UserID != userID {
		return domain.ErrInvalidCredential
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), uc.cost)
	if err != nil {
		return err
	}
	cred.PasswordHash = string(hash)
	cred.UpdatedAt = uc.now().UTC()
	return repository.SaveValue(ctx, uc.store, repository.CollectionCredentials, email, cred, false)
}

// SignOut revokes the session behind a token.
func (uc *UseCase) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return uc.sessions.Delete(ctx, sessionID)
}

// RevokeOtherSessions signs userID out everywhere except keepSessionID.
func (uc *UseCase) RevokeOtherSessions(ctx context.Context, userID, keepSessionID string) (int, error) {
	n, err := uc.sessions.DeleteByUser(ctx, userID, keepSessionID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int("count", n))
	}
	return n, nil
}

// ValidateSession reports whether sessionID is still live.
func (uc *UseCase) ValidateSession(ctx context.Context, sessionID string) error {
	_, err := uc.GetSession(ctx, sessionID)
	return err
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Profile returns the stored profile of userID, or ErrUserNotFound.
func (uc *UseCase) Profile(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	if err := repository.LoadInto(ctx, uc.store, repository.CollectionUsers, userID, &user); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	user.ID = userID
	return user, nil
}

func (uc *UseCase) openSession(ctx context.Context, user domain.User, provider string) (*domain.Identity, error) {
	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.ttl),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	token, err := uc.tokens.Issue(session, user.DisplayName, user.Email)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{
		UserID:      user.ID,
		Token:       token,
		SessionID:   session.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}

func (uc *UseCase) checkPassword(ctx context.Context, email, password string) (domain.Credential, error) {
	var cred domain.Credential
	email = domain.NormalizeEmail(email)
	if email == "" {
		return cred, domain.ErrInvalidCredential
	}
	if err := repository.LoadInto(ctx, uc.store, repository.CollectionCredentials, email, &cred); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return cred, domain.ErrInvalidCredential
		}
		return cred, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return cred, domain.ErrInvalidCredential
	}
	return cred, nil
}

func (uc *UseCase) emailForUsername(ctx context.Context, username string) (string, error) {
	docs, err := uc.store.List(ctx, repository.CollectionUsers)
	if err != nil {
		return "", err
	}
	for _, doc := range docs {
		var user domain.User
		if err := json.Unmarshal(doc.Data, &user); err != nil {
			continue
		}
		if user.Email != "" && strings.EqualFold(strings.TrimSpace(user.Username), username) {
			return user.Email, nil
		}
	}
	return "", domain.ErrInvalidCredential
}

// loadUser returns the stored profile or a bare user when none exists yet.
func (uc *UseCase) loadUser(ctx context.Context, userID string) domain.User {
	user, err := uc.Profile(ctx, userID)
	if err != nil {
		if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			uc.logger.Warn("failed to load user profile", zap.String("user_id", userID), zap.Error(err))
		}
		return domain.User{ID: userID}
	}
	return user
}

func (uc *UseCase) saveUser(ctx context.Context, user domain.User) error {
	patch := map[string]string{
		"displayName": user.DisplayName,
		"email":       user.Email,
	}
	if user.Username != "" {
		patch["username"] = user.Username
	}
	return repository.SaveValue(ctx, uc.store, repository.CollectionUsers, user.ID, patch, true)
}
