package hostedauth

// Package hostedauth implements the auth ports against a hosted auth service
// that speaks OAuth2 password grant and issues OIDC-verifiable JWTs. Profile
// fields ride along as loosely-structured user metadata claims.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

// Claim lookup expressions. Metadata is loosely structured, so lookups
// tolerate multiple shapes and fall back left to right.
const (
	roleHintExpr    = "user_metadata.role || app_metadata.role"
	displayNameExpr = "user_metadata.display_name || user_metadata.name || email"
	emailExpr       = "email"
)

// BackendConfig holds configuration for the hosted auth backend.
type BackendConfig struct {
	// BaseURL is the root of the hosted auth service, e.g. https://auth.example.com.
	BaseURL string
	// Issuer is the OIDC issuer used to verify access tokens. Defaults to BaseURL.
	Issuer string
	// ClientID identifies this application at the token endpoint.
	ClientID string
	// ClientSecret is optional for public clients.
	ClientSecret string
	// AdminKey authorizes privileged identity operations.
	AdminKey string
	// HTTPClient is optional and defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

// Backend is the shared hosted auth collaborator. It verifies tokens, performs
// credential exchanges, and implements ports.IdentityAdmin.
type Backend struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
	oauth      *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
}

// NewBackend creates a hosted auth backend, performing OIDC discovery once.
func NewBackend(ctx context.Context, cfg BackendConfig) (*Backend, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("hosted auth: base URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("hosted auth: client ID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = cfg.BaseURL
	}
	issuer = strings.TrimSuffix(issuer, "/")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Backend{
		baseURL:    base,
		adminKey:   cfg.AdminKey,
		httpClient: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     op.Endpoint(),
		},
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// signIn exchanges credentials at the token endpoint and verifies the result.
func (b *Backend) signIn(ctx context.Context, email, password string) (domainauth.Session, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	tok, err := b.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest ||
				retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return domainauth.Session{}, apperrors.Unauthenticated("invalid email or password")
		}
		return domainauth.Session{}, fmt.Errorf("password grant: %w", err)
	}
	return b.sessionFromToken(ctx, tok.AccessToken, tok.Expiry)
}

// sessionFromToken verifies an access token and maps its claims to a session.
func (b *Backend) sessionFromToken(ctx context.Context, rawToken string, expiry time.Time) (domainauth.Session, error) {
	idTok, err := b.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthenticated, "token verification failed")
	}

	var claims map[string]any
	if err := idTok.Claims(&claims); err != nil {
		return domainauth.Session{}, fmt.Errorf("decode token claims: %w", err)
	}

	identity := domainauth.Identity{ID: idTok.Subject}
	identity.Email, _ = searchString(emailExpr, claims)
	identity.DisplayName, _ = searchString(displayNameExpr, claims)
	if raw, ok := searchString(roleHintExpr, claims); ok {
		// Anything outside the enum degrades to no hint; the resolver falls
		// back to the durable role directory.
		identity.RoleHint, _ = domainauth.ParseRole(raw)
	}

	expiresAt := idTok.Expiry
	if !expiry.IsZero() && expiry.Before(expiresAt) {
		expiresAt = expiry
	}

	return domainauth.Session{
		Token:     rawToken,
		Identity:  identity,
		ExpiresAt: expiresAt,
	}, nil
}

// searchString runs a jmespath expression over loosely-typed claims.
func searchString(expr string, claims map[string]any) (string, bool) {
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type signUpResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// signUp registers an identity at the hosted service and verifies the
// returned token.
func (b *Backend) signUp(ctx context.Context, in ports.SignUpInput) (domainauth.Session, error) {
	payload := signUpRequest{
		Email:    in.Email,
		Password: in.Password,
		Data:     map[string]any{},
	}
	if in.DisplayName != "" {
		payload.Data["display_name"] = in.DisplayName
	}
	if in.Role != domainauth.RoleNone {
		payload.Data["role"] = string(in.Role)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("marshal signup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/signup", bytes.NewReader(body))
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("build signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("signup request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusConflict ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return domainauth.Session{}, apperrors.Conflict("an account with this email already exists")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domainauth.Session{}, apperrors.Internalf("signup failed with status %d", resp.StatusCode)
	}

	var out signUpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return domainauth.Session{}, fmt.Errorf("decode signup response: %w", err)
	}
	if out.AccessToken == "" {
		return domainauth.Session{}, apperrors.Internal("signup response missing access token")
	}

	var expiry time.Time
	if out.ExpiresIn > 0 {
		expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return b.sessionFromToken(ctx, out.AccessToken, expiry)
}

// revoke invalidates a token at the hosted service. Best effort; the service
// treats unknown tokens as already revoked.
func (b *Backend) revoke(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/logout", nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return apperrors.Internalf("logout failed with status %d", resp.StatusCode)
	}
	return nil
}

// DeleteIdentity permanently removes an identity via the admin API.
func (b *Backend) DeleteIdentity(ctx context.Context, userID string) error {
	if b.adminKey == "" {
		return apperrors.Internal("hosted auth: admin key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.baseURL+"/admin/users/"+userID, nil)
	if err != nil {
		return fmt.Errorf("build admin delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.adminKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("admin delete request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound("identity not found")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return apperrors.Internalf("admin delete failed with status %d", resp.StatusCode)
	}
	return nil
}

// NewClient hands out a fresh per-browser-client handle.
func (b *Backend) NewClient() *Client {
	return b.NewClientWithSession(nil)
}

// NewClientWithSession hands out a client seeded with a previously stored
// session, so a returning browser finds its session on initialization.
func (b *Backend) NewClientWithSession(sess *domainauth.Session) *Client {
	c := &Client{
		backend: b,
		subs:    make(map[int]ports.SessionCallback),
	}
	if sess != nil && !sess.Expired(time.Now()) {
		cp := *sess
		c.current = &cp
	}
	return c
}

// Client is one browser client's handle on the hosted backend.
type Client struct {
	backend *Backend

	mu      sync.Mutex
	current *domainauth.Session
	subs    map[int]ports.SessionCallback
	nextSub int
}

// CurrentSession returns the client's live session, or nil when there is none
// or it has expired.
func (c *Client) CurrentSession(_ context.Context) (*domainauth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Expired(time.Now()) {
		return nil, nil
	}
	sess := *c.current
	return &sess, nil
}

// Subscribe registers a session event callback and returns an unsubscribe function.
func (c *Client) Subscribe(cb ports.SessionCallback) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SignIn exchanges credentials for a session and emits a signed_in event.
func (c *Client) SignIn(ctx context.Context, email, password string) (domainauth.Session, error) {
	sess, err := c.backend.signIn(ctx, email, password)
	if err != nil {
		return domainauth.Session{}, err
	}
	c.setSession(domainauth.SessionEventSignedIn, &sess)
	return sess, nil
}

// SignUp registers a new identity, signs it in, and emits a signed_up event.
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) (domainauth.Session, error) {
	if in.Email == "" || in.Password == "" {
		return domainauth.Session{}, apperrors.Validation("email and password are required")
	}
	sess, err := c.backend.signUp(ctx, in)
	if err != nil {
		return domainauth.Session{}, err
	}
	c.setSession(domainauth.SessionEventSignedUp, &sess)
	return sess, nil
}

// SignOut revokes the client's token and emits a signed_out event. The local
// session survives a failed revocation so the caller can retry.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != nil {
		if err := c.backend.revoke(ctx, current.Token); err != nil {
			return err
		}
	}
	c.setSession(domainauth.SessionEventSignedOut, nil)
	return nil
}

// setSession commits the new session and notifies subscribers outside the
// lock, so callbacks may call back into the client.
func (c *Client) setSession(kind domainauth.SessionEventKind, sess *domainauth.Session) {
	c.mu.Lock()
	c.current = sess
	cbs := make([]ports.SessionCallback, 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(kind, sess)
	}
}
