// ABOUTME: Template rendering functions for admin UI
// ABOUTME: Loads templates from embedded filesystem and renders them

package webadmin

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/model"
)

// Template data types
type loginData struct {
	Title     string
	User      *auth.Principal // always nil; base.html checks it
	Error     string
	CSRFToken string
}

type modelItem struct {
	Label string
	Name  string
	URL   string
	Count int // -1 when the table could not be counted
}

func newModelItem(meta *model.Meta, count int) modelItem {
	return modelItem{
		Label: meta.Label(),
		Name:  meta.Name(),
		URL:   changelistURL(meta),
		Count: count,
	}
}

func changelistURL(meta *model.Meta) string {
	return "/admin/" + meta.AppLabel + "/" + meta.ModelName() + "/"
}

type indexData struct {
	Title     string
	User      *auth.Principal
	BaseURL   string
	CSRFToken string
	Models    []modelItem
}

type rowItem struct {
	PK    string
	Cells []string
}

type changelistData struct {
	Title       string
	User        *auth.Principal
	BaseURL     string
	CSRFToken   string
	Model       modelItem
	Description template.HTML
	Columns     []string
	Rows        []rowItem
	Actions     []admin.Action
	Notice      string
}

// renderLoginPage renders the login page
func (a *Admin) renderLoginPage(w http.ResponseWriter, errorMsg, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))

	data := loginData{
		Title:     "Login",
		Error:     errorMsg,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render login page", "error", err)
	}
}

// renderIndex renders the model index
func (a *Admin) renderIndex(w http.ResponseWriter, p *auth.Principal, models []modelItem, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/index.html"))

	data := indexData{
		Title:     "Site administration",
		User:      p,
		BaseURL:   a.config.BaseURL,
		CSRFToken: csrfToken,
		Models:    models,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render index", "error", err)
	}
}

// renderChangelist renders a model's record list with the action form
func (a *Admin) renderChangelist(w http.ResponseWriter, data changelistData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/changelist.html"))
	data.BaseURL = a.config.BaseURL

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render changelist", "model", data.Model.Label, "error", err)
	}
}

// renderMarkdown converts a model description to HTML. Descriptions come
// from the operator's config file, not from users.
func (a *Admin) renderMarkdown(src string) template.HTML {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		a.logger.Error("failed to convert markdown", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String())
}
