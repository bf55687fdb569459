// Package bunstore is the optional Postgres-backed dialog.SessionStore,
// wired in only when DATABASE_DSN is set (see newSessionStore in
// cadtalk.go). It
// is grounded on internal/infrastructure/storage/bun_store.go's shape:
// a *bun.DB, one bun.BaseModel per entity, NewXModel/ToDomain
// conversion pairs, and upsert-by-id writes via "ON CONFLICT DO UPDATE".
//
// Durability here covers the conversation envelope only — ID,
// creation time, turn history and the last executed script. The PIG
// graph itself stays process-local: Graph's arenas are unexported by
// design (internal/pig/snapshot.go's Snapshot has no exported fields),
// so a session reloaded after a process restart starts with a fresh,
// empty graph and replays no prior operations. Giving pig.Graph an
// exported durable export format is future work, not something this
// package should reach into pig's internals to fake.
package bunstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/domainerr"
)

// Store is a Postgres-backed dialog.SessionStore. It keeps a
// process-local cache of live *dialog.Session so that the PIG graph
// and busy guard survive across calls within the same process; the
// database row only tracks the envelope.
type Store struct {
	db    *bun.DB
	cache map[string]*dialog.Session
}

// New opens a bun.DB against dsn using the pgdriver/pgdialect pair,
// mirroring NewBunStore.
func New(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Store{db: db, cache: make(map[string]*dialog.Session)}
}

// InitSchema creates the sessions table if it doesn't already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*sessionModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

type turnModel struct {
	UserMessage  string    `json:"user_message"`
	ResponseText string    `json:"response_text"`
	Timestamp    time.Time `json:"timestamp"`
}

type sessionModel struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID         string      `bun:"id,pk"`
	CreatedAt  time.Time   `bun:"created_at"`
	LastScript string      `bun:"last_script"`
	History    []turnModel `bun:"history,type:jsonb"`
}

func (s *Store) Create(id string) (*dialog.Session, error) {
	ctx := context.Background()
	row := &sessionModel{ID: id, CreatedAt: time.Now()}
	if _, err := s.db.NewInsert().Model(row).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
		return nil, err
	}
	sess := dialog.NewSession(id)
	s.cache[id] = sess
	return sess, nil
}

func (s *Store) Get(id string) (*dialog.Session, error) {
	if sess, ok := s.cache[id]; ok {
		return sess, nil
	}

	ctx := context.Background()
	row := new(sessionModel)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, domainerr.SessionNotFound(id)
	}

	sess := dialog.NewSession(row.ID)
	sess.SetLastScript(row.LastScript)
	for _, t := range row.History {
		sess.AppendTurn(dialog.Turn{UserMessage: t.UserMessage, ResponseText: t.ResponseText, Timestamp: t.Timestamp})
	}
	s.cache[id] = sess
	return sess, nil
}

func (s *Store) List() ([]*dialog.Session, error) {
	ctx := context.Background()
	var rows []sessionModel
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*dialog.Session, 0, len(rows))
	for _, row := range rows {
		sess, err := s.Get(row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) Delete(id string) error {
	ctx := context.Background()
	delete(s.cache, id)
	_, err := s.db.NewDelete().Model((*sessionModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// Persist flushes a session's envelope (history and last script) back
// to its row. Callers invoke this after each turn completes — it is
// not automatic, since the hot path mutates the in-memory Session
// directly for speed (matching Execute's pattern: mutate in memory,
// persist the envelope explicitly at turn boundaries).
func (s *Store) Persist(ctx context.Context, sess *dialog.Session) error {
	history := sess.RecentHistory(50)
	rows := make([]turnModel, len(history))
	for i, t := range history {
		rows[i] = turnModel{UserMessage: t.UserMessage, ResponseText: t.ResponseText, Timestamp: t.Timestamp}
	}
	row := &sessionModel{
		ID:         sess.ID,
		CreatedAt:  sess.CreatedAt,
		LastScript: sess.GetLastScript(),
		History:    rows,
	}
	_, err := s.db.NewInsert().Model(row).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}
