package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	TypeFrameworkCreated = "FrameworkCreated"
	TypeSessionSaved     = "SessionSaved"
	TypeSessionStatus    = "SessionStatusChanged"
	TypeReportGenerated  = "ReportGenerated"
)

type Event struct {
	Seq       int64  `json:"seq"`
	TenantID  string `json:"tenant_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	Actor     string `json:"actor,omitempty"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewEvent builds an event with data marshalled to JSON.
func NewEvent(tenantID, typ, key, actor string, data any) Event {
	buf, err := json.Marshal(data)
	if err != nil || data == nil {
		buf = []byte("{}")
	}
	return Event{TenantID: tenantID, Type: typ, Key: key, Actor: actor, DataJSON: string(buf)}
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	return Append(ctx, r.db, e)
}

// Append writes e through ex, so callers can log inside their own transaction.
func Append(ctx context.Context, ex Execer, e Event) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (tenant_id, typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.TenantID, e.Type, e.Key, e.Actor, e.DataJSON, time.Now().Unix())
	return err
}

// List returns the events for one key, oldest first.
func (r *EventRepo) List(ctx context.Context, tenantID, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, tenant_id, typ, key, actor, data, created_at
		   FROM event_log WHERE tenant_id=$1 AND key=$2 ORDER BY seq`, tenantID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.TenantID, &e.Type, &e.Key, &e.Actor, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Search returns the newest events of a tenant whose type or key contains q.
func (r *EventRepo) Search(ctx context.Context, tenantID, q string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, tenant_id, typ, key, actor, data, created_at FROM event_log
		  WHERE tenant_id=$1 AND (typ LIKE '%'||$2||'%' OR key LIKE '%'||$2||'%')
		  ORDER BY seq DESC LIMIT $3`, tenantID, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.TenantID, &e.Type, &e.Key, &e.Actor, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
