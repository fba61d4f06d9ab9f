// Package session acquires and maintains the authenticated portal
// session: the session cookie plus the rotating anti-forgery token.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"itec-bot/storage"
	"itec-bot/types"
)

const (
	loginPath     = "/users/sign_in"
	protectedPath = "/court_searches/new"

	// SessionCookie is the portal's session cookie name. Exported so
	// the scanner and the booking runner can attach it to their own
	// requests and browser context.
	SessionCookie = "_reservations_session"

	userAgent = "Mozilla/5.0 (compatible; itec-bot/1.0)"
)

// AuthError reports why token acquisition failed. Reasons are distinct
// so callers can tell a markup change from a network problem.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// Manager owns the stored SessionToken for one credential set. It is
// safe for concurrent use; racing callers may redundantly re-login,
// which is wasted work, not a correctness problem (the login endpoint
// is idempotent per credential set and the token replace is atomic).
type Manager struct {
	store   storage.Store
	client  *http.Client
	baseURL string
	log     *zap.SugaredLogger
}

func New(store storage.Store, baseURL string, log *zap.SugaredLogger) *Manager {
	return &Manager{
		store: store,
		client: &http.Client{
			Timeout: 15 * time.Second,
			// Redirects carry the signal here: a 302 off a protected
			// page means the session is stale, so never follow them.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Acquire returns a valid SessionToken, logging in only when the
// stored one is absent or no longer accepted by the portal.
func (m *Manager) Acquire(ctx context.Context, creds types.Credentials) (types.SessionToken, error) {
	tok, err := m.load(ctx)
	if err == nil && tok.Valid() {
		alive, err := m.probe(ctx, tok)
		if err != nil {
			m.log.Warnw("session probe failed, re-logging in", "err", err)
		} else if alive {
			return tok, nil
		}
	}
	return m.login(ctx, creds)
}

// ForceRefresh drops the stored token unconditionally and re-runs
// acquisition. Used after an authenticated call unexpectedly bounced
// mid-scan.
func (m *Manager) ForceRefresh(ctx context.Context, creds types.Credentials) (types.SessionToken, error) {
	if err := m.store.Del(ctx, storage.KeyAuthToken, storage.KeySessionID); err != nil {
		return types.SessionToken{}, &AuthError{Reason: "clearing stored token", Err: err}
	}
	return m.login(ctx, creds)
}

func (m *Manager) load(ctx context.Context) (types.SessionToken, error) {
	auth, err := m.store.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return types.SessionToken{}, err
	}
	sid, err := m.store.Get(ctx, storage.KeySessionID)
	if err != nil {
		return types.SessionToken{}, err
	}
	return types.SessionToken{AuthenticityToken: auth, SessionID: sid}, nil
}

// probe hits a protected page with the stored cookie. A redirect (back
// to the login page) means the session is stale.
func (m *Manager) probe(ctx context.Context, tok types.SessionToken) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+protectedPath, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok.SessionID})

	resp, err := m.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		m.log.Infow("stored session is stale", "status", resp.StatusCode)
		return false, nil
	}
	return resp.StatusCode < 400, nil
}

// login runs the full flow: fetch the login page for a fresh
// anti-forgery token, post credentials, lift the session cookie off the
// response, then revisit the protected page to harvest the post-login
// token used on subsequent form submissions.
func (m *Manager) login(ctx context.Context, creds types.Credentials) (types.SessionToken, error) {
	page, cookies, err := m.get(ctx, m.baseURL+loginPath, "")
	if err != nil {
		return types.SessionToken{}, &AuthError{Reason: "fetching login page", Err: err}
	}
	loginToken := extractFormToken(page)
	if loginToken == "" {
		return types.SessionToken{}, &AuthError{Reason: "authenticity token missing from login page"}
	}

	form := url.Values{}
	form.Set("authenticity_token", loginToken)
	form.Set("user[email]", creds.Email)
	form.Set("user[id_number]", creds.IDNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return types.SessionToken{}, &AuthError{Reason: "building login request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// The portal ties the pre-login token to the login page's session.
	if pre := cookieValue(cookies, SessionCookie); pre != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: pre})
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return types.SessionToken{}, &AuthError{Reason: "posting credentials", Err: err}
	}
	resp.Body.Close()

	sid := cookieValue(resp.Cookies(), SessionCookie)
	if sid == "" {
		return types.SessionToken{}, &AuthError{Reason: "session cookie missing from login response"}
	}

	page, _, err = m.get(ctx, m.baseURL+protectedPath, sid)
	if err != nil {
		return types.SessionToken{}, &AuthError{Reason: "fetching post-login page", Err: err}
	}
	authToken := extractMetaToken(page)
	if authToken == "" {
		authToken = extractFormToken(page)
	}
	if authToken == "" {
		return types.SessionToken{}, &AuthError{Reason: "authenticity token missing from post-login page"}
	}

	tok := types.SessionToken{AuthenticityToken: authToken, SessionID: sid}
	if err := m.save(ctx, tok); err != nil {
		return types.SessionToken{}, &AuthError{Reason: "persisting token", Err: err}
	}
	m.log.Infow("logged in", "email", creds.Email)
	return tok, nil
}

// save replaces the stored token as a single unit.
func (m *Manager) save(ctx context.Context, tok types.SessionToken) error {
	return m.store.MSet(ctx, map[string]string{
		storage.KeyAuthToken: tok.AuthenticityToken,
		storage.KeySessionID: tok.SessionID,
	})
}

func (m *Manager) get(ctx context.Context, rawURL, sid string) (string, []*http.Cookie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	return string(body), resp.Cookies(), nil
}

func extractFormToken(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	val, _ := doc.Find(`input[name="authenticity_token"]`).First().Attr("value")
	return val
}

func extractMetaToken(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	val, _ := doc.Find(`meta[name="csrf-token"]`).First().Attr("content")
	return val
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
