package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthEvent names a change in authentication state.
type AuthEvent string

const (
	SignedIn       AuthEvent = "SIGNED_IN"
	SignedOut      AuthEvent = "SIGNED_OUT"
	TokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	UserUpdated    AuthEvent = "USER_UPDATED"
)

// User represents a GoTrue user.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
}

// Session is the backend-issued proof of an authenticated user.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// AuthChangeHandler observes auth state transitions. A nil session means
// signed out.
type AuthChangeHandler func(event AuthEvent, session *Session)

// Subscription is the handle returned from OnAuthStateChange. Unsubscribe
// detaches the handler deterministically.
type Subscription interface {
	Unsubscribe()
}

// AuthClient handles GoTrue operations and holds the current session.
type AuthClient struct {
	client *Client

	mu        sync.RWMutex
	session   *Session
	listeners map[string]AuthChangeHandler
	// serviceKey authorizes admin endpoints (invite-by-email).
	serviceKey string
}

func newAuthClient(c *Client) *AuthClient {
	return &AuthClient{
		client:    c,
		listeners: make(map[string]AuthChangeHandler),
	}
}

// SetServiceKey configures the service-role key used by admin operations.
func (a *AuthClient) SetServiceKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.serviceKey = key
}

// OnAuthStateChange registers a listener for session transitions.
func (a *AuthClient) OnAuthStateChange(handler AuthChangeHandler) Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.NewString()
	a.listeners[id] = handler
	return &authSubscription{auth: a, id: id}
}

type authSubscription struct {
	auth *AuthClient
	id   string
}

func (s *authSubscription) Unsubscribe() {
	s.auth.mu.Lock()
	defer s.auth.mu.Unlock()
	delete(s.auth.listeners, s.id)
}

// Session returns the current session, or nil when signed out.
func (a *AuthClient) Session() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *AuthClient) accessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.AccessToken
}

func (a *AuthClient) emit(event AuthEvent, session *Session) {
	a.mu.RLock()
	handlers := make([]AuthChangeHandler, 0, len(a.listeners))
	for _, h := range a.listeners {
		handlers = append(handlers, h)
	}
	a.mu.RUnlock()

	for _, h := range handlers {
		h(event, session)
	}
}

func (a *AuthClient) setSession(event AuthEvent, session *Session) {
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	a.emit(event, session)
}

// SignUpOptions control the email-confirmation redirect target.
type SignUpOptions struct {
	EmailRedirectTo string
}

// SignUp creates a new account with email and password.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	var session Session
	endpoint := "/auth/v1/signup"
	if opts.EmailRedirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(opts.EmailRedirectTo)
	}
	if err := a.post(ctx, endpoint, payload, &session); err != nil {
		return nil, err
	}
	if session.AccessToken != "" {
		a.hydrateUser(&session)
		a.setSession(SignedIn, &session)
	}
	return &session, nil
}

// SignInWithPassword signs in with email and password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	var session Session
	if err := a.post(ctx, "/auth/v1/token?grant_type=password", payload, &session); err != nil {
		return nil, err
	}
	a.hydrateUser(&session)
	a.setSession(SignedIn, &session)
	return &session, nil
}

// OTPOptions control the magic-link flow.
type OTPOptions struct {
	EmailRedirectTo  string
	ShouldCreateUser bool
}

// SignInWithOTP sends a one-time sign-in link to the address.
func (a *AuthClient) SignInWithOTP(ctx context.Context, email string, opts OTPOptions) error {
	payload := map[string]any{
		"email":       email,
		"create_user": opts.ShouldCreateUser,
	}
	if opts.EmailRedirectTo != "" {
		payload["redirect_to"] = opts.EmailRedirectTo
	}
	return a.post(ctx, "/auth/v1/otp", payload, nil)
}

// SignOut revokes the current session and notifies listeners.
func (a *AuthClient) SignOut(ctx context.Context) error {
	token := a.accessToken()
	if token != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/logout", nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("apikey", a.client.anonKey)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := a.client.do(req)
		if err != nil {
			return err
		}
		if err := resp.Error(); err != nil {
			return err
		}
	}
	a.setSession(SignedOut, nil)
	return nil
}

// UserAttributes are the mutable parts of the authenticated user.
type UserAttributes struct {
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// UpdateUser changes the current user's password or metadata.
func (a *AuthClient) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	token := a.accessToken()
	if token == "" {
		return nil, &Error{StatusCode: http.StatusUnauthorized, Message: "no active session"}
	}

	body, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.client.baseURL+"/auth/v1/user", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", a.client.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	a.mu.Lock()
	if a.session != nil {
		a.session.User = &user
	}
	session := a.session
	a.mu.Unlock()
	a.emit(UserUpdated, session)
	return &user, nil
}

// GetUser fetches the authenticated user from GoTrue.
func (a *AuthClient) GetUser(ctx context.Context) (*User, error) {
	token := a.accessToken()
	if token == "" {
		return nil, &Error{StatusCode: http.StatusUnauthorized, Message: "no active session"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.client.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", a.client.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// ResetOptions carry the redirect target for email-based recovery flows.
type ResetOptions struct {
	RedirectTo string
}

// ResetPasswordForEmail sends a password-recovery email.
func (a *AuthClient) ResetPasswordForEmail(ctx context.Context, email string, opts ResetOptions) error {
	payload := map[string]any{"email": email}
	endpoint := "/auth/v1/recover"
	if opts.RedirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(opts.RedirectTo)
	}
	return a.post(ctx, endpoint, payload, nil)
}

// InviteUserByEmail sends an invitation email. Requires the service-role key.
func (a *AuthClient) InviteUserByEmail(ctx context.Context, email string, opts ResetOptions) error {
	a.mu.RLock()
	key := a.serviceKey
	a.mu.RUnlock()
	if key == "" {
		return &Error{StatusCode: http.StatusForbidden, Message: "service key required for invite"}
	}

	payload := map[string]any{"email": email}
	endpoint := a.client.baseURL + "/auth/v1/invite"
	if opts.RedirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(opts.RedirectTo)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.do(req)
	if err != nil {
		return err
	}
	return resp.Error()
}

func (a *AuthClient) post(ctx context.Context, endpoint string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", a.client.anonKey)
	req.Header.Set("Authorization", "Bearer "+a.client.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.do(req)
	if err != nil {
		return err
	}
	if err := resp.Error(); err != nil {
		return err
	}
	if dest == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// hydrateUser fills in the session user from access-token claims when GoTrue
// omits the user object from a token response.
func (a *AuthClient) hydrateUser(session *Session) {
	if session == nil || session.User != nil || session.AccessToken == "" {
		return
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(session.AccessToken, claims); err != nil {
		return
	}
	user := &User{
		ID:    stringClaim(claims, "sub"),
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}
	if md, ok := claims["user_metadata"].(map[string]any); ok {
		user.UserMetadata = md
	}
	session.User = user
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
