// ABOUTME: Admin web UI for browsing registered models and running bulk actions
// ABOUTME: Provides password login, cookie sessions, CSRF protection, and the export API

package webadmin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/csvexport"
	"github.com/2389/csvexport/internal/store"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "csvexport_admin_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "csvexport_admin_csrf"

	// SessionDuration is how long sessions last
	SessionDuration = 7 * 24 * time.Hour

	// changelistLimit caps the rows shown on a changelist page
	changelistLimit = 100

	// selectAcross is the form value that selects every row of the model
	selectAcross = "1"
)

// dummyHash keeps failed logins for unknown users as slow as real ones
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type contextKey string

const csrfContextKey contextKey = "csrf_token"

// Config holds admin UI configuration
type Config struct {
	// BaseURL is the external URL of the admin, shown in the page header
	BaseURL string
}

// Store is the persistence the admin UI needs.
type Store interface {
	store.UserStore
	store.PermissionStore
	store.RecordStore
}

// Admin handles admin UI routes and authentication
type Admin struct {
	store    Store
	site     *admin.Site
	verifier auth.TokenVerifier
	config   Config
	logger   *slog.Logger
}

// New creates a new Admin handler. A nil verifier disables the token API.
func New(s Store, site *admin.Site, verifier auth.TokenVerifier, cfg Config) *Admin {
	return &Admin{
		store:    s,
		site:     site,
		verifier: verifier,
		config:   cfg,
		logger:   slog.Default().With("component", "webadmin"),
	}
}

// RegisterRoutes registers all admin routes on the given mux
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("GET /admin/login", a.handleLoginPage)
	mux.HandleFunc("POST /admin/login", a.handleLogin)

	// Protected routes (auth required)
	mux.HandleFunc("GET /admin", a.requireAuth(a.handleIndex))
	mux.HandleFunc("GET /admin/{$}", a.requireAuth(a.handleIndex))
	mux.HandleFunc("POST /admin/logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("GET /admin/{app}/{model}/{$}", a.requireAuth(a.handleChangelist))
	mux.HandleFunc("POST /admin/{app}/{model}/{$}", a.requireAuth(a.handleAction))

	// Token API
	if a.verifier != nil {
		apiAuth := auth.HTTPAuthMiddleware(a.store, a.verifier, a.logger)
		mux.Handle("GET /api/v1/export/{app}/{model}", apiAuth(http.HandlerFunc(a.handleAPIExport)))
	}

	a.logger.Info("admin routes registered", "api", a.verifier != nil)
}

// requireAuth wraps a handler to require an active staff session. The
// principal is attached to the request context.
func (a *Admin) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := a.principalFromSession(r)
		if err != nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		if !p.CanAccessAdmin() {
			a.logger.Warn("admin access denied", "username", p.Username)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	}
}

// principalFromSession resolves the session cookie to a principal
func (a *Admin) principalFromSession(r *http.Request) (*auth.Principal, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, err
	}

	session, err := a.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}

	return a.store.LoadPrincipal(r.Context(), session.UserID)
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (a *Admin) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		a.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/admin",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form against cookie
func (a *Admin) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// createSession creates a new session for a user and sets the cookie
func (a *Admin) createSession(w http.ResponseWriter, r *http.Request, userID string) error {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	session := &store.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(SessionDuration),
	}

	if err := a.store.CreateSession(r.Context(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/admin",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// handleLoginPage renders the login page
func (a *Admin) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if p, err := a.principalFromSession(r); err == nil && p.CanAccessAdmin() {
		http.Redirect(w, r, "/admin/", http.StatusSeeOther)
		return
	}

	_, csrfToken := a.ensureCSRFToken(w, r)
	a.renderLoginPage(w, "", csrfToken)
}

// handleLogin processes login form submission
func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	fail := func(msg string) {
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, msg, csrfToken)
	}

	if err := r.ParseForm(); err != nil {
		fail("Invalid form data")
		return
	}

	if !a.validateCSRF(r) {
		fail("Invalid request, please try again")
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		fail("Username and password required")
		return
	}

	user, err := a.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			_ = auth.CheckPassword(dummyHash, password)
			fail("Invalid username or password")
			return
		}
		a.logger.Error("failed to get user", "error", err)
		fail("An error occurred")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		fail("Invalid username or password")
		return
	}

	if !user.IsActive || !user.IsStaff {
		a.logger.Warn("login refused for non-staff account", "username", username)
		fail("This account cannot access the admin")
		return
	}

	if err := a.createSession(w, r, user.ID); err != nil {
		a.logger.Error("failed to create session", "error", err)
		fail("An error occurred")
		return
	}

	if err := a.store.DeleteExpiredSessions(r.Context()); err != nil {
		a.logger.Warn("failed to purge expired sessions", "error", err)
	}

	a.logger.Info("admin login successful", "username", username)
	http.Redirect(w, r, "/admin/", http.StatusSeeOther)
}

// handleLogout logs out the current user
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil && !a.validateCSRF(r) {
		a.logger.Warn("logout request with invalid CSRF token")
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		_ = a.store.DeleteSession(r.Context(), cookie.Value)
	}

	for _, name := range []string{SessionCookieName, CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/admin",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}

	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// handleIndex lists every registered model
func (a *Admin) handleIndex(w http.ResponseWriter, r *http.Request) {
	r, csrfToken := a.ensureCSRFToken(w, r)
	p := auth.FromContext(r.Context())

	var models []modelItem
	for _, ma := range a.site.Models() {
		meta := ma.Meta()
		count, err := a.store.CountRecords(r.Context(), meta)
		if err != nil {
			a.logger.Warn("failed to count records", "model", meta.Label(), "error", err)
			count = -1
		}
		models = append(models, newModelItem(meta, count))
	}

	a.renderIndex(w, p, models, csrfToken)
}

// handleChangelist shows the first page of a model's records with the
// action form
func (a *Admin) handleChangelist(w http.ResponseWriter, r *http.Request) {
	ma, ok := a.lookupModel(w, r)
	if !ok {
		return
	}

	r, csrfToken := a.ensureCSRFToken(w, r)
	p := auth.FromContext(r.Context())
	meta := ma.Meta()

	total, err := a.store.CountRecords(r.Context(), meta)
	if err != nil {
		a.logger.Error("failed to count records", "model", meta.Label(), "error", err)
		http.Error(w, "Failed to load records", http.StatusInternalServerError)
		return
	}

	columns := meta.FieldNames()
	var rows []rowItem
	for rec, err := range a.store.ListRecords(r.Context(), meta, changelistLimit) {
		if err != nil {
			a.logger.Error("failed to list records", "model", meta.Label(), "error", err)
			http.Error(w, "Failed to load records", http.StatusInternalServerError)
			return
		}
		pk, _ := rec.Value(meta.PrimaryKey())
		row := rowItem{PK: csvexport.Text(pk), Cells: make([]string, len(columns))}
		for i, col := range columns {
			v, _ := rec.Value(col)
			row.Cells[i] = csvexport.Text(v)
		}
		rows = append(rows, row)
	}

	a.renderChangelist(w, changelistData{
		Title:       meta.Name(),
		User:        p,
		CSRFToken:   csrfToken,
		Model:       newModelItem(meta, total),
		Description: a.renderMarkdown(meta.Description),
		Columns:     columns,
		Rows:        rows,
		Actions:     a.site.Actions(ma, p),
		Notice:      r.URL.Query().Get("notice"),
	})
}

// handleAction runs the selected bulk action against the checked rows
func (a *Admin) handleAction(w http.ResponseWriter, r *http.Request) {
	ma, ok := a.lookupModel(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	p := auth.FromContext(r.Context())
	meta := ma.Meta()

	name := r.FormValue("action")
	action, ok := a.site.Action(ma, p, name)
	if !ok {
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	var ids []string
	if r.FormValue("select_across") != selectAcross {
		ids = nonEmpty(r.Form["_selected_action"])
		if len(ids) == 0 {
			http.Redirect(w, r, changelistURL(meta)+"?notice=no-selection", http.StatusSeeOther)
			return
		}
	}

	a.runAction(w, r, ma, action, ids)
}

// handleAPIExport runs the export action for a bearer-token client.
// ?ids=1,2 selects rows; omitting ids exports every row.
func (a *Admin) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	ma, ok := a.lookupModel(w, r)
	if !ok {
		return
	}

	p := auth.FromContext(r.Context())
	action, ok := a.site.Action(ma, p, csvexport.ActionName)
	if !ok {
		http.Error(w, "Export not available for this model", http.StatusNotFound)
		return
	}

	var ids []string
	if raw, present := r.URL.Query()["ids"]; present {
		ids = []string{}
		for _, v := range raw {
			ids = append(ids, nonEmpty(strings.Split(v, ","))...)
		}
	}

	a.runAction(w, r, ma, action, ids)
}

func (a *Admin) runAction(w http.ResponseWriter, r *http.Request, ma admin.ModelAdmin, action admin.Action, ids []string) {
	meta := ma.Meta()
	qs := a.store.Records(r.Context(), meta, ids)

	if err := action.Func(w, r, ma, qs); err != nil {
		a.logger.Error("admin action failed", "action", action.Name, "model", meta.Label(), "error", err)
		http.Error(w, "Action failed", http.StatusInternalServerError)
	}
}

// lookupModel resolves {app}/{model} path values, answering 404 when unknown
func (a *Admin) lookupModel(w http.ResponseWriter, r *http.Request) (admin.ModelAdmin, bool) {
	ma, err := a.site.Get(r.PathValue("app"), strings.ToLower(r.PathValue("model")))
	if err != nil {
		http.Error(w, "Model not found", http.StatusNotFound)
		return nil, false
	}
	return ma, true
}

// nonEmpty trims values and drops the blank ones
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// generateSecureToken creates a cryptographically secure random hex token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
