package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"opendesk.org/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// SessionService owns the credential lifecycle: session issuance on login,
// refresh-token rotation with reuse detection, and revocation. All
// collaborators (store, clock, signing secret) are injected; there is no
// package-global state.
type SessionService struct {
	store Store
	now   func() time.Time

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Claims are the verified contents of an access token. The permission set is
// a snapshot taken at issuance and is not re-derived until the next refresh.
type Claims struct {
	OrganizationID string   `json:"org"`
	Roles          []string `json:"roles,omitempty"`
	Permissions    []string `json:"permissions"`
	SessionID      string   `json:"sid"`
	TokenType      string   `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionOption configures SessionService.
type SessionOption func(*SessionService) error

// WithSigningSecret sets the HS256 secret used for access tokens.
func WithSigningSecret(secret string) SessionOption {
	return func(s *SessionService) error {
		if strings.TrimSpace(secret) == "" {
			return errors.New("auth: signing secret is empty")
		}
		s.secret = []byte(secret)
		return nil
	}
}

// WithIssuer sets the iss claim on issued tokens.
func WithIssuer(issuer string) SessionOption {
	return func(s *SessionService) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SessionOption {
	return func(s *SessionService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewSessionService constructs the lifecycle manager. A signing secret is
// required.
func NewSessionService(store Store, opts ...SessionOption) (*SessionService, error) {
	svc := &SessionService{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.secret) == 0 {
		return nil, errors.New("auth: signing secret is not configured")
	}
	return svc, nil
}

// Principal loads a user's flattened permission set fresh from role grants.
// Called at login and refresh; in between, the token snapshot is what counts.
func (s *SessionService) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	grants, err := s.store.Roles().GrantsForUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	roles := make([]string, 0, len(grants))
	for _, g := range grants {
		roles = append(roles, g.Role.Name)
	}
	return NewPrincipal(user.ID, user.OrganizationID, roles, FlattenPermissions(grants)), nil
}

// Login authenticates credentials and opens a session. The returned pair
// contains the only copy of the refresh secret that will ever exist in
// plaintext.
func (s *SessionService) Login(ctx context.Context, organizationID, email, password string, meta SessionMeta) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	user, err := s.store.Users().FindByEmail(ctx, organizationID, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrUnauthorized
		}
		return TokenPair{}, Principal{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	principal, err := s.Principal(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	session, refreshToken, err := s.CreateSession(ctx, principal, meta)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	principal.SessionID = session.ID
	access, accessExp, err := s.IssueAccessToken(principal, session.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: session.ExpiresAt,
	}, principal, nil
}

// CreateSession stores a new session holding only the hash of a fresh random
// refresh secret and returns the plaintext token exactly once, formatted as
// "<sessionID>.<secret>". The plaintext is never persisted or logged.
func (s *SessionService) CreateSession(ctx context.Context, principal Principal, meta SessionMeta) (*Session, string, error) {
	secret, hash, err := newRefreshSecret()
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	session := &Session{
		ID:               ids.New(),
		UserID:           principal.UserID,
		OrganizationID:   principal.OrganizationID,
		RefreshTokenHash: hash,
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, "", err
	}
	return session, session.ID + "." + secret, nil
}

// IssueAccessToken signs a short-lived JWT embedding identity, organization,
// roles, the permission snapshot and the session id.
func (s *SessionService) IssueAccessToken(principal Principal, sessionID string) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		OrganizationID: principal.OrganizationID,
		Roles:          principal.Roles,
		Permissions:    principal.PermissionList(),
		SessionID:      sessionID,
		TokenType:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// AuthenticateToken verifies an access token and rebuilds the request
// principal from its claims snapshot.
func (s *SessionService) AuthenticateToken(token string) (Principal, error) {
	claims, err := s.verifyAccessToken(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	principal := NewPrincipal(claims.Subject, claims.OrganizationID, claims.Roles, claims.Permissions)
	principal.SessionID = claims.SessionID
	return principal, nil
}

// Refresh rotates the session's refresh secret and issues a fresh access
// token, implementing rotation-with-reuse-detection. A presented secret that
// does not match the stored hash — including losing a rotation race — is
// treated as theft: every session of the user is revoked.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	sessionID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidRefreshToken
	}

	sessions := s.store.Sessions()
	session, err := sessions.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrSessionNotFound
		}
		return TokenPair{}, Principal{}, err
	}
	now := s.now().UTC()
	switch StateOf(session, now) {
	case StateRevoked:
		return TokenPair{}, Principal{}, ErrSessionRevoked
	case StateTokenExpired:
		return TokenPair{}, Principal{}, ErrSessionExpired
	}

	presentedHash := hashRefreshSecret(secret)
	if !constantTimeEqual(session.RefreshTokenHash, presentedHash) {
		return TokenPair{}, Principal{}, s.containTheft(ctx, session.UserID, now)
	}

	newSecret, newHash, err := newRefreshSecret()
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	expiresAt := now.Add(s.refreshTTL)
	rotated, err := sessions.Rotate(ctx, session.ID, presentedHash, newHash, expiresAt)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if !rotated {
		// Zero rows means the hash changed between Find and Rotate. A
		// legitimate concurrent rotation would have consumed the single-use
		// secret too, so this is indistinguishable from replay.
		return TokenPair{}, Principal{}, s.containTheft(ctx, session.UserID, now)
	}

	principal, err := s.Principal(ctx, session.UserID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	principal.SessionID = session.ID
	access, accessExp, err := s.IssueAccessToken(principal, session.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     session.ID + "." + newSecret,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: expiresAt,
	}, principal, nil
}

// containTheft revokes the whole session set of the user. A single replay
// attempt invalidates the account's sessions, not just the offending one.
func (s *SessionService) containTheft(ctx context.Context, userID string, now time.Time) error {
	if _, err := s.store.Sessions().RevokeAllForUser(ctx, userID, now); err != nil {
		return err
	}
	return ErrInvalidRefreshToken
}

// RevokeSession marks one session revoked. Idempotent: revoking an
// already-revoked session is a no-op.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	return s.store.Sessions().Revoke(ctx, sessionID, s.now().UTC())
}

// RevokeAllSessions revokes every non-revoked session of the user in one
// bulk operation and returns how many were affected.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	return s.store.Sessions().RevokeAllForUser(ctx, userID, s.now().UTC())
}

// GetSession loads a session row; the caller is responsible for the view
// policy check.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.store.Sessions().Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) verifyAccessToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "access" || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func newRefreshSecret() (secret, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)
	return secret, hashRefreshSecret(secret), nil
}

func hashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
