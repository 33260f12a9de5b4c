package session_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coach/internal/db/dbtest"
	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/rbac"
	"github.com/mind-engage/mindengage-coach/internal/session"
)

var (
	coach   = rbac.Principal{ID: "coach-1", TenantID: "t1", SystemRole: rbac.RoleCoach}
	coachee = rbac.Principal{ID: "coachee-1", TenantID: "t1", SystemRole: rbac.RoleCoachee}
	admin   = rbac.Principal{ID: "admin-1", TenantID: "t1", SystemRole: rbac.RoleAdmin}
	other   = rbac.Principal{ID: "coach-2", TenantID: "t1", SystemRole: rbac.RoleCoach}
	foreign = rbac.Principal{ID: "coach-1", TenantID: "t2", SystemRole: rbac.RoleCoach}
)

// sampleFramework: step1 has 2 Learner, 1 Qualified, 1 Experienced, 1 Master
// behaviors (11 points); step2 has none.
func sampleFramework() framework.Framework {
	return framework.Framework{
		ID:       "fw1",
		TenantID: "t1",
		Name:     "Discovery",
		Levels: []framework.Level{
			{ID: "lvl-l", Name: "Learner", PointValue: 1},
			{ID: "lvl-q", Name: "Qualified", PointValue: 2},
			{ID: "lvl-e", Name: "Experienced", PointValue: 3},
			{ID: "lvl-m", Name: "Master", PointValue: 4},
		},
		Steps: []framework.Step{
			{ID: "step1", Number: 1, Title: "Opening", Substeps: []framework.Substep{
				{ID: "ss1", Title: "Rapport", Behaviors: []framework.Behavior{
					{ID: "b1", Description: "greets", LevelID: "lvl-l"},
					{ID: "b2", Description: "states purpose", LevelID: "lvl-l"},
					{ID: "b3", Description: "confirms time", LevelID: "lvl-q"},
				}},
				{ID: "ss2", Title: "Agenda", Behaviors: []framework.Behavior{
					{ID: "b4", Description: "proposes agenda", LevelID: "lvl-e"},
					{ID: "b5", Description: "links goals", LevelID: "lvl-m"},
				}},
			}},
			{ID: "step2", Number: 2, Title: "Questioning"},
		},
	}
}

type fixture struct {
	db       *sql.DB
	sessions *session.SQLStore
	svc      *session.Service
	// ids maps the ids of sampleFramework to the ones the store assigned.
	ids map[string]string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dbh := dbtest.Open(t)
	fws := framework.NewSQLStore(dbh)
	in := sampleFramework()
	created, err := fws.Create(context.Background(), in, admin.ID)
	require.NoError(t, err)
	for _, u := range []rbac.Principal{coach, coachee, admin, other,
		{ID: "coachee-2", TenantID: "t1", SystemRole: rbac.RoleCoachee},
		{ID: "coachee-9", TenantID: "t2", SystemRole: rbac.RoleCoachee},
	} {
		_, err := dbh.Exec(`INSERT INTO users (id, tenant_id, username, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
			u.ID, u.TenantID, u.ID, u.SystemRole, 0)
		require.NoError(t, err)
	}
	st := session.NewSQLStore(dbh)
	return fixture{db: dbh, sessions: st, svc: &session.Service{Sessions: st, Frameworks: fws}, ids: idMap(in, created)}
}

func idMap(in, out framework.Framework) map[string]string {
	m := map[string]string{in.ID: out.ID}
	for i, l := range in.Levels {
		m[l.ID] = out.Levels[i].ID
	}
	for i, st := range in.Steps {
		m[st.ID] = out.Steps[i].ID
		for j, ss := range st.Substeps {
			m[ss.ID] = out.Steps[i].Substeps[j].ID
			for k, b := range ss.Behaviors {
				m[b.ID] = out.Steps[i].Substeps[j].Behaviors[k].ID
			}
		}
	}
	return m
}

func (f fixture) newDraft(t *testing.T) session.Session {
	t.Helper()
	s, err := f.svc.Create(context.Background(), coach, session.CreateInput{
		CoacheeID: coachee.ID, FrameworkID: f.ids["fw1"], Title: "Weekly",
	})
	require.NoError(t, err)
	return s
}
