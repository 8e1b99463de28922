// Package auth issues and validates the JWTs that guard the upload and
// chat endpoints, with GitHub OAuth as the identity source.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pmorken/letterchat/internal/fault"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// User is the authenticated caller identity.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type Response struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}

type Claims struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	jwt.RegisteredClaims
}

// Config holds the auth settings. Enabled=false runs the API open, for
// local development only.
type Config struct {
	Enabled      bool
	JWTSecret    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AllowedOrg   string
}

// Service validates caller identity. Construct once at startup and share;
// it holds no mutable state.
type Service struct {
	cfg    Config
	secret []byte
	http   *http.Client
}

func New(cfg Config) *Service {
	return &Service{
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether authentication is required.
func (s *Service) Enabled() bool { return s.cfg.Enabled }

// GenerateState creates a random state parameter for OAuth
func (s *Service) GenerateState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "fallback-state-" + fmt.Sprintf("%d", time.Now().Unix())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// LoginURL returns the GitHub OAuth login URL.
func (s *Service) LoginURL(state string) string {
	scope := "read:user,user:email"
	if s.cfg.AllowedOrg != "" {
		scope += ",read:org"
	}
	return fmt.Sprintf(
		"https://github.com/login/oauth/authorize?client_id=%s&redirect_uri=%s&scope=%s&state=%s",
		s.cfg.ClientID, s.cfg.RedirectURL, scope, state,
	)
}

// ExchangeCode exchanges an OAuth code for an access token.
func (s *Service) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := fmt.Sprintf(
		"client_id=%s&client_secret=%s&code=%s",
		s.cfg.ClientID, s.cfg.ClientSecret, code,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://github.com/login/oauth/access_token", strings.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if accessToken, ok := result["access_token"].(string); ok {
		return accessToken, nil
	}
	return "", errors.New("failed to get access token")
}

// FetchUser fetches the caller's identity from the GitHub API, enforcing
// org membership when configured.
func (s *Service) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}

	if s.cfg.AllowedOrg != "" && !s.isOrgMember(ctx, accessToken, user.Login) {
		return nil, errors.New("user is not a member of the required organization")
	}
	return &user, nil
}

func (s *Service) isOrgMember(ctx context.Context, accessToken, username string) bool {
	url := fmt.Sprintf("https://api.github.com/orgs/%s/members/%s", s.cfg.AllowedOrg, username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// 204 means public member, 200 means private member
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent
}

// GenerateToken creates a signed JWT for the user.
func (s *Service) GenerateToken(user *User) (string, error) {
	claims := Claims{
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Login,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates and parses a JWT.
func (s *Service) ValidateToken(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnauthorized, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return &User{
			Login:     claims.Login,
			Name:      claims.Name,
			Email:     claims.Email,
			AvatarURL: claims.AvatarURL,
		}, nil
	}
	return nil, fault.Wrap(fault.ErrUnauthorized, errors.New("invalid token"))
}

// RequireAuth rejects requests without a valid identity before any work is
// done. The token comes from the Authorization header or the auth_token
// cookie. When auth is disabled the request passes through.
func (s *Service) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		var tokenString string
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else if cookie, err := r.Cookie("auth_token"); err == nil {
			tokenString = cookie.Value
		}

		if tokenString == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		user, err := s.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserFromContext extracts the authenticated user from a request context.
func UserFromContext(r *http.Request) *User {
	if user, ok := r.Context().Value(UserContextKey).(*User); ok {
		return user
	}
	return nil
}
