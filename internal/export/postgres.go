package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/stefankarschti/inputosm/internal/config"
	"github.com/stefankarschti/inputosm/internal/osm"
)

// Postgres loads decoded entities into three plain tables. Rows are queued
// into a pgx.Batch and shipped once the configured batch size accumulates.
// Queued rows outlive the handler call, so tag and member strings are
// serialized to JSON bytes and node-ref slices copied before queuing;
// nothing in the batch aliases a decode arena.
type Postgres struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	log  *zap.Logger

	mu      sync.Mutex
	batch   *pgx.Batch
	pending int

	Rows   atomic.Int64
	failed atomic.Bool
}

// NewPostgres connects and (re)creates the target tables.
func NewPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Workers)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	p := &Postgres{cfg: cfg, pool: pool, log: log, batch: &pgx.Batch{}}
	if err := p.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) table(name string) string {
	return fmt.Sprintf("%s.osm_%s", p.cfg.DBSchema, name)
}

func (p *Postgres) createTables(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, p.cfg.DBSchema),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, p.table("nodes")),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, p.table("ways")),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, p.table("relations")),
		fmt.Sprintf(`CREATE TABLE %s (
			id BIGINT PRIMARY KEY,
			lat DOUBLE PRECISION NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			version INT,
			ts BIGINT,
			changeset BIGINT,
			tags JSONB
		)`, p.table("nodes")),
		fmt.Sprintf(`CREATE TABLE %s (
			id BIGINT PRIMARY KEY,
			node_refs BIGINT[] NOT NULL,
			version INT,
			ts BIGINT,
			changeset BIGINT,
			tags JSONB
		)`, p.table("ways")),
		fmt.Sprintf(`CREATE TABLE %s (
			id BIGINT PRIMARY KEY,
			members JSONB NOT NULL,
			version INT,
			ts BIGINT,
			changeset BIGINT,
			tags JSONB
		)`, p.table("relations")),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// Handlers returns the handler set feeding this loader.
func (p *Postgres) Handlers() osm.Handlers {
	return osm.Handlers{
		Node:     p.insertNodes,
		Way:      p.insertWays,
		Relation: p.insertRelations,
	}
}

// Close flushes the remaining batch and releases the pool.
func (p *Postgres) Close(ctx context.Context) error {
	p.mu.Lock()
	err := p.flushLocked(ctx)
	p.mu.Unlock()
	p.pool.Close()
	if p.failed.Load() && err == nil {
		err = fmt.Errorf("batch insert failed, see log")
	}
	return err
}

func tagsJSON(tags []osm.Tag) []byte {
	if len(tags) == 0 {
		return []byte("{}")
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		// json.Marshal copies, so aliasing arena strings here is fine
		m[t.Key] = t.Value
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

type memberJSON struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

func membersJSON(members []osm.Member) []byte {
	out := make([]memberJSON, len(members))
	for i, m := range members {
		out[i] = memberJSON{Type: m.Type.String(), Ref: m.ID, Role: m.Role}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return []byte("[]")
	}
	return b
}

// queue adds one statement and flushes when the batch is full. Returns
// false once a flush has failed so the decode stops instead of grinding
// through a dead connection.
func (p *Postgres) queue(sql string, args ...any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed.Load() {
		return false
	}
	p.batch.Queue(sql, args...)
	p.pending++
	if p.pending >= p.cfg.BatchSize {
		if err := p.flushLocked(context.Background()); err != nil {
			p.log.Error("batch insert", zap.Error(err))
			p.failed.Store(true)
			return false
		}
	}
	return true
}

func (p *Postgres) flushLocked(ctx context.Context) error {
	if p.pending == 0 {
		return nil
	}
	br := p.pool.SendBatch(ctx, p.batch)
	err := br.Close()
	if err == nil {
		p.Rows.Add(int64(p.pending))
	}
	p.batch = &pgx.Batch{}
	p.pending = 0
	return err
}

func (p *Postgres) insertNodes(_ *osm.Context, nodes []osm.Node) bool {
	sql := fmt.Sprintf(`INSERT INTO %s (id, lat, lon, version, ts, changeset, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`, p.table("nodes"))
	for i := range nodes {
		n := &nodes[i]
		if !p.cfg.BBox.Contains(float64(n.RawLatitude)*rawScale, float64(n.RawLongitude)*rawScale) {
			continue
		}
		ok := p.queue(sql,
			n.ID,
			float64(n.RawLatitude)*rawScale,
			float64(n.RawLongitude)*rawScale,
			n.Version, n.Timestamp, n.Changeset,
			tagsJSON(n.Tags),
		)
		if !ok {
			return false
		}
	}
	return true
}

func (p *Postgres) insertWays(_ *osm.Context, ways []osm.Way) bool {
	sql := fmt.Sprintf(`INSERT INTO %s (id, node_refs, version, ts, changeset, tags)
		VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`, p.table("ways"))
	for i := range ways {
		w := &ways[i]
		refs := make([]int64, len(w.NodeRefs))
		copy(refs, w.NodeRefs)
		if !p.queue(sql, w.ID, refs, w.Version, w.Timestamp, w.Changeset, tagsJSON(w.Tags)) {
			return false
		}
	}
	return true
}

func (p *Postgres) insertRelations(_ *osm.Context, relations []osm.Relation) bool {
	sql := fmt.Sprintf(`INSERT INTO %s (id, members, version, ts, changeset, tags)
		VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`, p.table("relations"))
	for i := range relations {
		r := &relations[i]
		if !p.queue(sql, r.ID, membersJSON(r.Members), r.Version, r.Timestamp, r.Changeset, tagsJSON(r.Tags)) {
			return false
		}
	}
	return true
}
