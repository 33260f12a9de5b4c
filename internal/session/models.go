package session

import (
	"errors"

	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/proficiency"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

func (s Status) Valid() bool { return s == StatusDraft || s == StatusSubmitted }

var (
	ErrNotFound = errors.New("session not found")
	ErrNotDraft = errors.New("session is not a draft")
	ErrInvalid  = errors.New("invalid request")
)

type Session struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	FrameworkID string `json:"framework_id"`
	CoachID     string `json:"coach_id"`
	CoacheeID   string `json:"coachee_id"`
	Title       string `json:"title"`
	Context     string `json:"context"`
	Status      Status `json:"status"`
	ReportKey   string `json:"report_key,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	SubmittedAt *int64 `json:"submitted_at,omitempty"`
}

type Notes struct {
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
	ActionItems  string `json:"action_items"`
	General      string `json:"general"`
}

// View is a session with everything recorded against it.
type View struct {
	Session            Session              `json:"session"`
	Notes              Notes                `json:"notes"`
	CheckedBehaviorIDs []string             `json:"checked_behavior_ids"`
	StepScores         map[string]string    `json:"stepScores"`
	Proficiencies      []proficiency.Record `json:"proficiencies"`

	Ledger    Ledger              `json:"-"`
	Framework framework.Framework `json:"-"`
}

type CreateInput struct {
	CoacheeID   string `json:"coachee_id"`
	FrameworkID string `json:"framework_id"`
	Title       string `json:"title"`
	Context     string `json:"context,omitempty"`
}

type ScoreInput struct {
	BehaviorID string `json:"behavior_id"`
	Checked    bool   `json:"checked"`
}

// SaveInput is the full desired state of a draft session.
type SaveInput struct {
	Context                 string               `json:"context"`
	Notes                   Notes                `json:"notes"`
	Scores                  []ScoreInput         `json:"scores"`
	StepScores              map[string]string    `json:"stepScores"`
	CalculatedProficiencies []proficiency.Record `json:"calculatedProficiencies,omitempty"`
}

// SaveRecord is what the store writes for one save.
type SaveRecord struct {
	TenantID  string
	SessionID string
	Actor     string
	Context   string
	Notes     Notes
	Scores    []Score
	Records   []proficiency.Record
}

type ListOpts struct {
	TenantID  string
	CoachID   string
	CoacheeID string
	// ParticipantID matches either coach or coachee.
	ParticipantID string
	Status        Status
	Limit         int
	Offset        int
}
