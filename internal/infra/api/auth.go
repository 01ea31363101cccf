package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/infra/metrics"
)

// ===== Session/JWT primitives =====

const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	loginMaxAge = 24 * time.Hour
)

type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type SessionClaims struct {
	Role       string `json:"role"`
	TelegramID int64  `json:"tg_id"`
	jwt.RegisteredClaims
}

// Mint signs a session for the user id.
func (a *AuthManager) Mint(userID string, tgID int64, role string) (string, error) {
	now := a.now()
	claims := SessionClaims{
		Role:       role,
		TelegramID: tgID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*SessionClaims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return a.parse(strings.TrimSpace(hdr[7:]))
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFrom returns the session attached by RequireRole.
func ClaimsFrom(ctx context.Context) (*SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*SessionClaims)
	return c, ok
}

// RequireRole rejects requests without a valid session of the given role.
func (a *AuthManager) RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				metrics.IncAdminRequest(r.URL.Path, "unauthorized")
				fail(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if claims.Role != role {
				metrics.IncAdminRequest(r.URL.Path, "forbidden")
				fail(w, r, http.StatusForbidden, "forbidden")
				return
			}
			metrics.IncAdminRequest(r.URL.Path, "authorized")
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TelegramLogin is the payload of the Telegram login widget.
type TelegramLogin struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
	AuthDate  time.Time
}

// VerifyTelegramLogin checks the widget hash:
// hex(HMAC-SHA256(key = SHA256(bot token), "k=v" lines sorted by key, without hash)).
func VerifyTelegramLogin(q url.Values, botToken string, now time.Time) (*TelegramLogin, error) {
	got := q.Get("hash")
	if got == "" || botToken == "" {
		return nil, fmt.Errorf("%w: missing hash", domain.ErrAuthenticationFailed)
	}

	want := SignTelegramLogin(q, botToken)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return nil, fmt.Errorf("%w: login hash mismatch", domain.ErrAuthenticationFailed)
	}

	authUnix, err := strconv.ParseInt(q.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad auth_date", domain.ErrAuthenticationFailed)
	}
	authDate := time.Unix(authUnix, 0)
	if now.Sub(authDate) > loginMaxAge {
		return nil, fmt.Errorf("%w: login expired", domain.ErrAuthenticationFailed)
	}
	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad id", domain.ErrAuthenticationFailed)
	}
	return &TelegramLogin{
		ID:        id,
		FirstName: q.Get("first_name"),
		LastName:  q.Get("last_name"),
		Username:  q.Get("username"),
		PhotoURL:  q.Get("photo_url"),
		AuthDate:  authDate,
	}, nil
}

// SignTelegramLogin computes the widget hash for q.
func SignTelegramLogin(q url.Values, botToken string) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+q.Get(k))
	}
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
