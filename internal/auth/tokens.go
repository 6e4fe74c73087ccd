package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linkapp/backend/internal/config"
	"github.com/linkapp/backend/internal/models"
)

var (
	// ErrTokenExpired indicates a well-signed token whose lifetime has passed.
	// Callers branch on this: the session gate treats an expired access token
	// as a prompt to refresh rather than a hard failure.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates a token that fails signature or claim checks,
	// or a refresh/reset token whose persisted record has been revoked.
	ErrTokenInvalid = errors.New("token invalid")
)

// Kind selects the signing secret, lifetime, and persistence policy of a token.
type Kind string

const (
	KindAccess   Kind = "access"
	KindRefresh  Kind = "refresh"
	KindEmail    Kind = "email"
	KindPassword Kind = "password"
)

// persisted reports whether tokens of this kind are recorded for revocation.
// Access and email tokens are stateless: validity is signature plus expiry.
func (k Kind) persisted() bool {
	return k == KindRefresh || k == KindPassword
}

func (k Kind) record() models.TokenKind {
	switch k {
	case KindRefresh:
		return models.TokenKindRefresh
	case KindEmail:
		return models.TokenKindEmail
	default:
		return models.TokenKindPassword
	}
}

// TokenStore persists issued refresh and password-reset tokens so they can be
// revoked and survive process restarts.
type TokenStore interface {
	Save(ctx context.Context, record models.TokenRecord) error
	Find(ctx context.Context, token string) (models.TokenRecord, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// ErrRecordNotFound is returned by TokenStore implementations when no live
// record matches the token.
var ErrRecordNotFound = errors.New("token record not found")

// Claims is the JWT payload carried by every token kind.
type Claims struct {
	UserID string `json:"userid"`
	jwt.RegisteredClaims
}

type kindPolicy struct {
	secret []byte
	ttl    time.Duration
}

// Service mints and validates the four token kinds, each with an independent
// signing secret and expiry policy.
type Service struct {
	policies map[Kind]kindPolicy
	store    TokenStore
	now      func() time.Time
}

// NewService constructs a token service from configuration. The store must be
// able to hold refresh and password-reset records.
func NewService(cfg config.TokenConfig, store TokenStore) *Service {
	if store == nil {
		panic("auth: token store must not be nil")
	}
	return &Service{
		policies: map[Kind]kindPolicy{
			KindAccess:   {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			KindRefresh:  {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
			KindEmail:    {secret: []byte(cfg.EmailSecret), ttl: cfg.EmailTTL},
			KindPassword: {secret: []byte(cfg.PasswordSecret), ttl: cfg.PasswordTTL},
		},
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithNowFunc overrides the time source. Tests use this to cross expiry
// boundaries without sleeping.
func (s *Service) WithNowFunc(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue mints a signed token of the given kind for the user. Refresh and
// password-reset tokens are additionally persisted at issuance so they can be
// revoked later.
func (s *Service) Issue(ctx context.Context, kind Kind, userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("auth: user id must be provided")
	}

	policy, ok := s.policies[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("auth: unknown token kind %q", kind)
	}

	now := s.now()
	expiresAt := now.Add(policy.ttl)

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(policy.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	if kind.persisted() {
		record := models.TokenRecord{
			Token:     token,
			Kind:      kind.record(),
			UserID:    userID,
			ExpiresAt: expiresAt,
		}
		if err := s.store.Save(ctx, record); err != nil {
			return "", time.Time{}, fmt.Errorf("persist %s token: %w", kind, err)
		}
	}

	return token, expiresAt, nil
}

// Validate checks a token against the policy for its kind and returns the
// owner's user id. Expiry and signature failures are distinguished outcomes.
// For persisted kinds the matching record must still exist: a token that is
// cryptographically valid but revoked fails with ErrTokenInvalid.
func (s *Service) Validate(ctx context.Context, token string, kind Kind) (string, error) {
	policy, ok := s.policies[kind]
	if !ok {
		return "", fmt.Errorf("auth: unknown token kind %q", kind)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return policy.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !parsed.Valid || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	if kind.persisted() {
		record, err := s.store.Find(ctx, token)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return "", ErrTokenInvalid
			}
			return "", fmt.Errorf("look up %s token: %w", kind, err)
		}
		if record.UserID != claims.UserID {
			return "", ErrTokenInvalid
		}
	}

	return claims.UserID, nil
}

// Revoke deletes the persisted record backing a refresh or reset token,
// rendering it unusable regardless of its remaining lifetime.
func (s *Service) Revoke(ctx context.Context, token string) error {
	err := s.store.Delete(ctx, token)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	return err
}

// RevokeAll deletes every persisted token owned by the user, forcing re-login
// on all their sessions. Password change and reset rely on this.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	return s.store.DeleteByUser(ctx, userID)
}
