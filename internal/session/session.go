// Package session holds the per-user assistant state: dialogue history,
// advisor parameters, the cached market context, the last report and the
// user's portfolio.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/seenimoa/ibexai/pkg/models"
)

// ErrNotFound is returned by a Store for an unknown or expired session.
var ErrNotFound = errors.New("session not found")

// DefaultMaxHistory bounds the stored history. Only the last few turns are
// replayed into prompts; the rest is kept for display.
const DefaultMaxHistory = 100

// Status is the report lifecycle state.
type Status string

const (
	StatusNoReport        Status = "no_report"
	StatusReportGenerated Status = "report_generated"
)

// State is everything remembered about one session.
type State struct {
	History   []models.ConversationTurn `json:"history"`
	Profile   string                    `json:"profile"`
	Objective string                    `json:"objective"`
	Mode      models.Mode               `json:"mode"`
	Extended  bool                      `json:"extended"`

	// BaseContext is the market section of the chat prompt, valid for the
	// snapshot taken at BaseFetchedAt.
	BaseContext   string    `json:"ctx_base,omitempty"`
	BaseFetchedAt time.Time `json:"ctx_base_fetched_at,omitempty"`

	// LastReportExtended is the mode LastReport was generated in; Extended
	// may have been toggled since.
	LastReport         string           `json:"last_report_md,omitempty"`
	LastReportExtended bool             `json:"last_report_extended,omitempty"`
	Portfolio          models.Portfolio `json:"portfolio,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// New returns a fresh session in conversation mode.
func New() *State {
	return &State{Mode: models.ModeConversation}
}

// Status reports whether a report is available for download.
func (s *State) Status() Status {
	if s.LastReport != "" {
		return StatusReportGenerated
	}
	return StatusNoReport
}

// HasReport reports whether a report is available for download.
func (s *State) HasReport() bool { return s.LastReport != "" }

// SetReport records a successfully generated report and its kind.
func (s *State) SetReport(md string, extended bool) {
	s.LastReport, s.LastReportExtended = md, extended
}

// ClearReport drops the last report.
func (s *State) ClearReport() { s.LastReport, s.LastReportExtended = "", false }

// SetAdvisorParams stores the advisor parameters. An empty profile or
// objective keeps the stored value. A change of profile or objective
// invalidates the previous report. It reports whether anything changed.
func (s *State) SetAdvisorParams(profile, objective string, extended bool) bool {
	if profile == "" {
		profile = s.Profile
	}
	if objective == "" {
		objective = s.Objective
	}
	changed := profile != s.Profile || objective != s.Objective
	if changed {
		s.ClearReport()
	}
	s.Profile, s.Objective = profile, objective
	if extended != s.Extended {
		s.Extended = extended
		return true
	}
	return changed
}

// HasAdvisorParams reports whether both profile and objective are set.
func (s *State) HasAdvisorParams() bool {
	return s.Profile != "" && s.Objective != ""
}

// Append adds a turn to the history, dropping the oldest beyond limit.
// limit <= 0 uses DefaultMaxHistory.
func (s *State) Append(turn models.ConversationTurn, limit int) {
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	s.History = append(s.History, turn)
	if over := len(s.History) - limit; over > 0 {
		s.History = append([]models.ConversationTurn(nil), s.History[over:]...)
	}
}

// Base returns the cached market context if it was built from the snapshot
// taken at fetchedAt.
func (s *State) Base(fetchedAt time.Time) (string, bool) {
	if s.BaseContext == "" || !s.BaseFetchedAt.Equal(fetchedAt) {
		return "", false
	}
	return s.BaseContext, true
}

// SetBase caches the market context built from the snapshot taken at fetchedAt.
func (s *State) SetBase(base string, fetchedAt time.Time) {
	s.BaseContext, s.BaseFetchedAt = base, fetchedAt
}

// SetPortfolio replaces the portfolio wholesale after validating it.
func (s *State) SetPortfolio(pf models.Portfolio) error {
	if err := pf.Validate(); err != nil {
		return err
	}
	s.Portfolio = append(models.Portfolio(nil), pf...)
	return nil
}

// Clone returns a deep copy so stored state is never shared with callers.
func (s *State) Clone() *State {
	c := *s
	c.History = append([]models.ConversationTurn(nil), s.History...)
	c.Portfolio = append(models.Portfolio(nil), s.Portfolio...)
	return &c
}

// Store persists session state by session id.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, id string, s *State) error
	Delete(ctx context.Context, id string) error
}

// Load returns the stored state for id, or a fresh one when none exists.
func Load(ctx context.Context, store Store, id string) (*State, error) {
	s, err := store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	return s, err
}
