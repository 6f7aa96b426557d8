package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/auth"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

// FallbackEmailDomain is used for federated accounts that carry no email.
const FallbackEmailDomain = "users.noreply.firebaseapp.com"

// Reconciler maps verified identities onto exactly one user row per email.
type Reconciler struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewReconciler(db *gorm.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger, now: time.Now}
}

// Resolve returns the user for id, creating it with a zero balance when
// absent. Federated identities refresh profile fields they carry
// (last writer wins); session identities never do, since their claims only
// describe the user as of sign-in.
func (r *Reconciler) Resolve(ctx context.Context, id auth.VerifiedIdentity) (*models.User, error) {
	db := r.db.WithContext(ctx)

	if id.Source == auth.SourceSession && id.UserID > 0 {
		var user models.User
		err := db.First(&user, id.UserID).Error
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load session user: %w", err)
		}
	}

	email := Email(id)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "identity has no email")
	}

	user, err := r.findByEmail(db, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = r.create(db, email, id)
		if database.IsUniqueViolation(err) {
			// A concurrent first sign-in created the row; converge on it.
			user, err = r.findByEmail(db, email)
		} else if err == nil {
			return user, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", email, err)
	}

	if id.Source == auth.SourceFederated {
		if err := r.refresh(db, user, id); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Email returns the normalized email for id, falling back to a synthetic
// address for federated accounts without one.
func Email(id auth.VerifiedIdentity) string {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" && id.Source == auth.SourceFederated && id.Subject != "" {
		email = id.Subject + "@" + FallbackEmailDomain
	}
	return email
}

func (r *Reconciler) findByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Reconciler) create(db *gorm.DB, email string, id auth.VerifiedIdentity) (*models.User, error) {
	user := &models.User{
		Email:            email,
		Name:             id.Name,
		AvatarURL:        id.AvatarURL,
		Credits:          0,
		SubscriptionTier: models.TierFree,
		AuthProvider:     id.Provider,
	}
	if user.Name == "" {
		user.Name = nameFromEmail(email)
	}
	if id.EmailVerified {
		now := r.now().UTC()
		user.EmailVerifiedAt = &now
	}
	setProviderID(user, id)

	if err := db.Create(user).Error; err != nil {
		return nil, err
	}

	r.logger.Info("user created",
		zap.Int("user_id", user.ID),
		zap.String("provider", id.Provider),
	)
	return user, nil
}

func (r *Reconciler) refresh(db *gorm.DB, user *models.User, id auth.VerifiedIdentity) error {
	updates := map[string]any{}
	if id.Name != "" && id.Name != user.Name {
		updates["name"] = id.Name
	}
	if id.AvatarURL != "" && id.AvatarURL != user.AvatarURL {
		updates["avatar_url"] = id.AvatarURL
	}
	if id.EmailVerified && user.EmailVerifiedAt == nil {
		updates["email_verified_at"] = r.now().UTC()
	}
	switch id.Provider {
	case auth.ProviderFirebase:
		if user.FirebaseUID == "" {
			updates["firebase_uid"] = id.Subject
		}
	case auth.ProviderGitHub:
		if user.GitHubID == "" {
			updates["github_id"] = id.Subject
		}
	}
	if len(updates) == 0 {
		return nil
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("refresh profile: %w", err)
	}
	return nil
}

func setProviderID(user *models.User, id auth.VerifiedIdentity) {
	switch id.Provider {
	case auth.ProviderFirebase:
		user.FirebaseUID = id.Subject
	case auth.ProviderGitHub:
		user.GitHubID = id.Subject
	}
}

// Register creates a credential account. The password must already be hashed.
func (r *Reconciler) Register(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		name = nameFromEmail(email)
	}
	user := &models.User{
		Email:            email,
		Name:             name,
		PasswordHash:     passwordHash,
		SubscriptionTier: models.TierFree,
		AuthProvider:     auth.ProviderCredentials,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("An account with this email already exists")
		}
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

// ByEmail loads a user for credential sign-in.
func (r *Reconciler) ByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.findByEmail(r.db.WithContext(ctx), strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user", email)
	}
	return user, err
}

func nameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
