// ABOUTME: Admin site registry mapping models to their admin registrations
// ABOUTME: Holds per-model registrations and the site-wide action table

package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/model"
)

// ErrNotRegistered is returned when a model has no admin registration.
var ErrNotRegistered = errors.New("model not registered")

// ErrAlreadyRegistered is returned when a model is registered twice.
var ErrAlreadyRegistered = errors.New("model already registered")

// ActionFunc runs a bulk action against the selected records and writes the
// HTTP response. A returned error means nothing useful was written and the
// caller should answer with a server error.
type ActionFunc func(w http.ResponseWriter, r *http.Request, ma ModelAdmin, qs model.QuerySet) error

// Action is an entry in an action table.
type Action struct {
	Name        string
	Description string
	Func        ActionFunc
}

// ModelAdmin associates a model with its admin behavior.
type ModelAdmin interface {
	Meta() *model.Meta
	// Actions returns the model-specific actions available to p.
	Actions(p *auth.Principal) []Action
}

// Base is the default ModelAdmin: no model-specific actions.
type Base struct {
	Model *model.Meta
}

// NewBase returns a Base for the given model.
func NewBase(meta *model.Meta) *Base {
	return &Base{Model: meta}
}

// Meta returns the model metadata.
func (b *Base) Meta() *model.Meta {
	return b.Model
}

// Actions returns no model-specific actions.
func (b *Base) Actions(p *auth.Principal) []Action {
	return nil
}

// Site is the registry of model admins and site-wide actions.
// Registration happens at startup; lookups are safe for concurrent use.
type Site struct {
	mu      sync.RWMutex
	models  map[string]ModelAdmin // keyed by Meta.Label()
	actions []Action
	logger  *slog.Logger
}

// NewSite creates an empty site.
func NewSite() *Site {
	return &Site{
		models: make(map[string]ModelAdmin),
		logger: slog.Default().With("component", "admin"),
	}
}

// Register adds a model admin. The model metadata must validate.
func (s *Site) Register(ma ModelAdmin) error {
	meta := ma.Meta()
	if meta == nil {
		return fmt.Errorf("registering admin: nil model metadata")
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("registering %s: %w", meta.Label(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	label := meta.Label()
	if _, exists := s.models[label]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, label)
	}
	s.models[label] = ma

	s.logger.Info("registered model", "model", label)
	return nil
}

// Get returns the admin registered for app_label.model_name.
func (s *Site) Get(appLabel, modelName string) (ModelAdmin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	label := appLabel + "." + modelName
	ma, ok := s.models[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, label)
	}
	return ma, nil
}

// Models returns every registration sorted by label.
func (s *Site) Models() []ModelAdmin {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ModelAdmin, 0, len(s.models))
	for _, ma := range s.models {
		out = append(out, ma)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Meta().Label() < out[j].Meta().Label()
	})
	return out
}

// AddAction registers an action for every model on the site.
// Adding an action whose name already exists replaces it.
func (s *Site) AddAction(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.actions {
		if existing.Name == a.Name {
			s.actions[i] = a
			return
		}
	}
	s.actions = append(s.actions, a)
	s.logger.Info("added site-wide action", "action", a.Name)
}

// Actions returns the action table for ma as seen by p: site-wide actions
// first, then the model's own. A later action replaces an earlier one with
// the same name while keeping the earlier position.
func (s *Site) Actions(ma ModelAdmin, p *auth.Principal) []Action {
	s.mu.RLock()
	site := make([]Action, len(s.actions))
	copy(site, s.actions)
	s.mu.RUnlock()

	var merged []Action
	index := make(map[string]int)
	for _, a := range append(site, ma.Actions(p)...) {
		if i, ok := index[a.Name]; ok {
			merged[i] = a
			continue
		}
		index[a.Name] = len(merged)
		merged = append(merged, a)
	}
	return merged
}

// Action looks up a single action by name in ma's table.
func (s *Site) Action(ma ModelAdmin, p *auth.Principal, name string) (Action, bool) {
	for _, a := range s.Actions(ma, p) {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
