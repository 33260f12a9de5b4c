package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/proficiency"
	"github.com/mind-engage/mindengage-coach/internal/rbac"
)

// Publisher turns a submitted session into a stored report and returns its key.
type Publisher interface {
	Publish(ctx context.Context, v View) (string, error)
}

type Service struct {
	Sessions   Store
	Frameworks framework.Store
	Reports    Publisher // optional
	Log        *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// canView: same tenant and either a participant or an admin.
func canView(p rbac.Principal, s Session) bool {
	if p.TenantID == "" || p.TenantID != s.TenantID {
		return false
	}
	return p.IsAdmin() || p.ID == s.CoachID || p.ID == s.CoacheeID
}

// canEdit: only the session's coach.
func canEdit(p rbac.Principal, s Session) bool {
	return p.TenantID != "" && p.TenantID == s.TenantID && p.ID == s.CoachID
}

func (s *Service) Create(ctx context.Context, p rbac.Principal, in CreateInput) (Session, error) {
	in.CoacheeID = strings.TrimSpace(in.CoacheeID)
	in.FrameworkID = strings.TrimSpace(in.FrameworkID)
	if in.CoacheeID == "" || in.FrameworkID == "" {
		return Session{}, invalidf("coachee_id and framework_id required")
	}
	if _, err := s.Frameworks.Get(ctx, p.TenantID, in.FrameworkID); err != nil {
		return Session{}, err
	}
	ok, err := s.Sessions.UserExists(ctx, p.TenantID, in.CoacheeID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, invalidf("unknown coachee %q", in.CoacheeID)
	}
	return s.Sessions.Create(ctx, Session{
		ID:          uuid.NewString(),
		TenantID:    p.TenantID,
		FrameworkID: in.FrameworkID,
		CoachID:     p.ID,
		CoacheeID:   in.CoacheeID,
		Title:       strings.TrimSpace(in.Title),
		Context:     in.Context,
	})
}

// List returns the caller's sessions; admins see the whole tenant.
func (s *Service) List(ctx context.Context, p rbac.Principal, opts ListOpts) ([]Session, error) {
	opts.TenantID = p.TenantID
	if !p.IsAdmin() {
		opts.ParticipantID = p.ID
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, invalidf("invalid status %q", opts.Status)
	}
	return s.Sessions.List(ctx, opts)
}

func (s *Service) get(ctx context.Context, p rbac.Principal, id string, edit bool) (Session, error) {
	sess, err := s.Sessions.Get(ctx, p.TenantID, id)
	if err != nil {
		return Session{}, err
	}
	ok := canView(p, sess)
	if edit {
		ok = canEdit(p, sess)
	}
	if !ok {
		// indistinguishable from a missing session
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Load returns the session with notes, ledger and stored proficiencies.
func (s *Service) Load(ctx context.Context, p rbac.Principal, id string) (View, error) {
	sess, err := s.get(ctx, p, id, false)
	if err != nil {
		return View{}, err
	}
	return s.load(ctx, sess)
}

func (s *Service) load(ctx context.Context, sess Session) (View, error) {
	v := View{Session: sess}
	var err error
	if v.Notes, err = s.Sessions.Notes(ctx, sess.ID); err != nil {
		return View{}, err
	}
	scores, err := s.Sessions.Scores(ctx, sess.ID)
	if err != nil {
		return View{}, err
	}
	v.Ledger = NewLedger(scores)
	v.CheckedBehaviorIDs = v.Ledger.CheckedIDs()
	v.StepScores = v.Ledger.Overrides
	if v.Proficiencies, err = s.Sessions.Proficiencies(ctx, sess.ID); err != nil {
		return View{}, err
	}
	if v.Framework, err = s.Frameworks.Get(ctx, sess.TenantID, sess.FrameworkID); err != nil {
		return View{}, err
	}
	return v, nil
}

// ledgerFrom validates the submitted scores and overrides against the framework.
func ledgerFrom(fw framework.Framework, scores []ScoreInput, stepScores map[string]string) (Ledger, error) {
	l := Ledger{Checks: map[string]bool{}, Overrides: map[string]string{}}
	for _, sc := range scores {
		if _, ok := fw.Behavior(sc.BehaviorID); !ok {
			return Ledger{}, invalidf("unknown behavior %q", sc.BehaviorID)
		}
		l.Checks[sc.BehaviorID] = sc.Checked
	}
	levels := fw.ScoringLevels()
	for stepID, level := range stepScores {
		level = strings.TrimSpace(level)
		if level == "" {
			continue
		}
		if _, ok := fw.Step(stepID); !ok {
			return Ledger{}, invalidf("unknown step %q", stepID)
		}
		if !proficiency.ValidOverride(level, levels) {
			return Ledger{}, invalidf("step %q: %v %q", stepID, proficiency.ErrUnknownLevel, level)
		}
		l.Overrides[stepID] = level
	}
	return l, nil
}

// Calculate previews the proficiency records for the given state without saving.
func (s *Service) Calculate(ctx context.Context, p rbac.Principal, id string, in SaveInput) ([]proficiency.Record, error) {
	sess, err := s.get(ctx, p, id, false)
	if err != nil {
		return nil, err
	}
	fw, err := s.Frameworks.Get(ctx, sess.TenantID, sess.FrameworkID)
	if err != nil {
		return nil, err
	}
	l, err := ledgerFrom(fw, in.Scores, in.StepScores)
	if err != nil {
		return nil, err
	}
	return proficiency.Evaluate(sess.ID, fw.ScoringLevels(), fw.StepInputs(), l.Checked(), l.Overrides)
}

// Save replaces the whole recorded state of a draft session. Proficiency records
// are recomputed here; client supplied ones are only compared.
func (s *Service) Save(ctx context.Context, p rbac.Principal, id string, in SaveInput) (View, error) {
	sess, err := s.get(ctx, p, id, true)
	if err != nil {
		return View{}, err
	}
	if sess.Status != StatusDraft {
		return View{}, ErrNotDraft
	}
	fw, err := s.Frameworks.Get(ctx, sess.TenantID, sess.FrameworkID)
	if err != nil {
		return View{}, err
	}
	l, err := ledgerFrom(fw, in.Scores, in.StepScores)
	if err != nil {
		return View{}, err
	}
	records, err := proficiency.Evaluate(sess.ID, fw.ScoringLevels(), fw.StepInputs(), l.Checked(), l.Overrides)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.compareClient(sess.ID, records, in.CalculatedProficiencies)

	err = s.Sessions.Save(ctx, SaveRecord{
		TenantID:  sess.TenantID,
		SessionID: sess.ID,
		Actor:     p.ID,
		Context:   in.Context,
		Notes:     in.Notes,
		Scores:    l.Scores(),
		Records:   records,
	})
	if err != nil {
		return View{}, err
	}
	sess, err = s.Sessions.Get(ctx, sess.TenantID, sess.ID)
	if err != nil {
		return View{}, err
	}
	return s.load(ctx, sess)
}

func (s *Service) compareClient(sessionID string, server, client []proficiency.Record) {
	if len(client) == 0 {
		return
	}
	type key struct {
		n int
		t proficiency.Type
	}
	want := map[key]proficiency.Record{}
	for _, r := range server {
		want[key{r.StepNumber, r.Type}] = r
	}
	for _, c := range proficiency.Dedupe(client) {
		w, ok := want[key{c.StepNumber, c.Type}]
		if !ok || w.LevelName != c.LevelName || w.PointsEarned != c.PointsEarned || w.TotalPossible != c.TotalPossible {
			s.log().Debug("client proficiency differs from server calculation",
				"session", sessionID, "step_number", c.StepNumber, "type", c.Type,
				"client_level", c.LevelName, "server_level", w.LevelName)
		}
	}
}

// UpdateStatus moves a draft session to status. Submitting publishes the report
// best-effort: failures are logged and never fail the status change.
func (s *Service) UpdateStatus(ctx context.Context, p rbac.Principal, id string, status Status) (Session, error) {
	if !status.Valid() {
		return Session{}, invalidf("invalid status %q", status)
	}
	sess, err := s.get(ctx, p, id, true)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != StatusDraft {
		return Session{}, ErrNotDraft
	}
	sess, err = s.Sessions.SetStatus(ctx, sess.TenantID, sess.ID, p.ID, status)
	if err != nil {
		return Session{}, err
	}
	if status == StatusSubmitted && s.Reports != nil {
		if key, err := s.publish(ctx, sess); err != nil {
			s.log().Error("report generation failed", "session", sess.ID, "error", err)
		} else {
			sess.ReportKey = key
		}
	}
	return sess, nil
}

func (s *Service) publish(ctx context.Context, sess Session) (string, error) {
	v, err := s.load(ctx, sess)
	if err != nil {
		return "", err
	}
	key, err := s.Reports.Publish(ctx, v)
	if err != nil {
		return "", err
	}
	if err := s.Sessions.SetReportKey(ctx, sess.TenantID, sess.ID, key); err != nil {
		return "", err
	}
	return key, nil
}

// IsNotFound reports errors that should surface as 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, framework.ErrNotFound)
}
