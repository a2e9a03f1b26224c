package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/auth"
	"gawangliliw/sellerhub/internal/cache"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
)

// IAccountService is the identity side of the dashboard: sessions and
// credentials.
type IAccountService interface {
	SignIn(ctx context.Context, email, password string) (string, *models.User, error)
	SignOut(ctx context.Context, claims *auth.Claims) error
	RefreshToken(ctx context.Context, claims *auth.Claims) (string, error)
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	Me(ctx context.Context, userID utils.SixID) (*models.User, error)
	ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error
	Register(ctx context.Context, email, password string, role models.Role) (*models.User, error)
}

type accountService struct {
	db      *mongo.Database
	cfg     *config.Config
	revoker cache.TokenRevoker
	policy  *auth.PasswordPolicy
}

func NewAccountService(database *mongo.Database, cfg *config.Config, revoker cache.TokenRevoker) (IAccountService, error) {
	policy, err := auth.NewPasswordPolicy(cfg.PasswordRegexp)
	if err != nil {
		return nil, err
	}
	return &accountService{db: database, cfg: cfg, revoker: revoker, policy: policy}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *accountService) users() *mongo.Collection {
	return s.db.Collection(db.UsersCollection)
}

func (s *accountService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}
	return &user, nil
}

// SignIn checks the credentials and issues a session token. Unknown email,
// wrong password and disabled accounts all report ErrInvalidCredentials.
func (s *accountService) SignIn(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.Disabled || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(user.ID, user.IsStaff(), s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return "", nil, err
	}
	logger.Log.Info("signed_in", zap.String("user_id", user.ID.String()))
	return token, user, nil
}

// SignOut revokes the presented token until its natural expiry.
func (s *accountService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if claims.TokenID() == "" {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.TokenID(), claims.Expiry()); err != nil {
		return err
	}
	logger.Log.Info("signed_out", zap.String("user_id", claims.UserID))
	return nil
}

// RefreshToken swaps a valid token for a fresh one and revokes the old.
func (s *accountService) RefreshToken(ctx context.Context, claims *auth.Claims) (string, error) {
	userID, err := claims.SellerID()
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Disabled {
		return "", ErrForbidden
	}
	token, err := auth.GenerateJWT(user.ID, user.IsStaff(), s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return "", err
	}
	if err := s.SignOut(ctx, claims); err != nil {
		return "", err
	}
	return token, nil
}

// Authenticate validates a bearer token and checks it was not signed out.
func (s *accountService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := auth.ValidateJWT(token, s.cfg.JwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenID() != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.TokenID())
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, auth.ErrInvalidToken
		}
	}
	return claims, nil
}

func (s *accountService) Me(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID, err)
	}
	return &user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *accountService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if !s.policy.Allows(next) {
		return invalidf("new password does not meet the password policy")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"password":            hash,
		"password_changed_at": now,
		"updated_at":          now,
	}})
	if err != nil {
		return fmt.Errorf("error updating password for %s: %w", userID, err)
	}
	logger.Log.Info("password_changed", zap.String("user_id", userID.String()))
	return nil
}

// Register creates a user; sellers also get an empty profile document
// sharing the user's id. Used by the staff seeding path and tests.
func (s *accountService) Register(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidf("invalid email")
	}
	if !s.policy.Allows(password) {
		return nil, invalidf("password does not meet the password policy")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &models.User{Email: email, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
	if err := db.InsertWithNewID(ctx, s.users(), user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, invalidf("email already registered")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if role == models.RoleSeller {
		seller := &models.Seller{
			ID:        user.ID,
			Email:     email,
			Settings:  models.StoreSettings{StoreOpen: true, Notifications: models.NotificationPreferences{NewOrder: true, NewMessage: true, NewReview: true}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.db.Collection(db.SellersCollection).InsertOne(ctx, seller); err != nil {
			return nil, fmt.Errorf("error creating seller profile: %w", err)
		}
	}
	return user, nil
}
