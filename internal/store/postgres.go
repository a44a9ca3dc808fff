package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dbasik/dbasik/internal/db"
	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = 10
	}
	if poolCfg.MinConns <= 0 {
		poolCfg.MinConns = 2
	}
	// The database may still be starting when the service comes up.
	pool, err := resilience.DoVal(ctx, resilience.Policy{
		Attempts:   5,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		OnRetry:    resilience.LogRetry("postgres connect"),
	}, func(ctx context.Context) (*pgxpool.Pool, error) {
		return db.NewPool(ctx, connString, poolCfg)
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tiers (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL UNIQUE,
	slug        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name    TEXT NOT NULL UNIQUE,
	tier_id TEXT REFERENCES tiers(id)
);

CREATE TABLE IF NOT EXISTS returns (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id TEXT NOT NULL REFERENCES projects(id),
	year       INTEGER NOT NULL,
	quarter    INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (project_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS datamaps (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL UNIQUE,
	tier_id    TEXT REFERENCES tiers(id),
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS datamap_lines (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	datamap_id TEXT NOT NULL REFERENCES datamaps(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	key        TEXT NOT NULL,
	sheet      TEXT NOT NULL,
	cell_ref   TEXT NOT NULL,
	data_type  TEXT NOT NULL DEFAULT '',
	required   BOOLEAN NOT NULL DEFAULT false,
	max_length INTEGER NOT NULL DEFAULT 0,
	UNIQUE (datamap_id, sheet, cell_ref),
	UNIQUE (datamap_id, sheet, key)
);

CREATE TABLE IF NOT EXISTS return_items (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	return_id       TEXT NOT NULL REFERENCES returns(id) ON DELETE CASCADE,
	datamap_line_id TEXT REFERENCES datamap_lines(id) ON DELETE SET NULL,
	key             TEXT NOT NULL,
	sheet           TEXT NOT NULL,
	cell_ref        TEXT NOT NULL,
	value_str       TEXT,
	value_int       BIGINT,
	value_float     DOUBLE PRECISION,
	value_date      DATE,
	value_phone     TEXT,
	CHECK (num_nonnulls(value_str, value_int, value_float, value_date, value_phone) <= 1)
);

CREATE INDEX IF NOT EXISTS idx_returns_project ON returns(project_id);
CREATE INDEX IF NOT EXISTS idx_datamap_lines_datamap ON datamap_lines(datamap_id, position);
CREATE INDEX IF NOT EXISTS idx_return_items_return ON return_items(return_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Register ---

func (s *PostgresStore) CreateTier(ctx context.Context, name, description string) (*model.Tier, error) {
	t := &model.Tier{ID: uuid.New().String(), Name: name, Slug: slugify(name), Description: description}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tiers (id, name, slug, description) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Slug, t.Description,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert tier %s", name)
	}
	return t, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, name, tierID string) (*model.Project, error) {
	p := &model.Project{ID: uuid.New().String(), Name: name, TierID: tierID}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, tier_id) VALUES ($1, $2, $3)`,
		p.ID, p.Name, nullable(tierID),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert project %s", name)
	}
	return p, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.getProject(ctx, `SELECT id, name, tier_id FROM projects WHERE id = $1`, id)
}

func (s *PostgresStore) GetProjectByName(ctx context.Context, name string) (*model.Project, error) {
	return s.getProject(ctx, `SELECT id, name, tier_id FROM projects WHERE name = $1`, name)
}

func (s *PostgresStore) getProject(ctx context.Context, query, arg string) (*model.Project, error) {
	var p model.Project
	var tierID *string
	err := s.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.Name, &tierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("project", arg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", arg)
	}
	if tierID != nil {
		p.TierID = *tierID
	}
	return &p, nil
}

// --- Returns ---

func (s *PostgresStore) CreateReturn(ctx context.Context, projectID string, q model.Quarter) (*model.Return, error) {
	r := &model.Return{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Quarter:   q,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO returns (id, project_id, year, quarter, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.ProjectID, q.Year, q.Quarter, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert return for project %s", projectID)
	}
	return r, nil
}

func (s *PostgresStore) GetReturn(ctx context.Context, id string) (*model.Return, error) {
	r, err := scanReturn(s.pool.QueryRow(ctx,
		`SELECT id, project_id, year, quarter, created_at FROM returns WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("return", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get return %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListReturns(ctx context.Context, filter model.ReturnFilter) ([]model.Return, error) {
	query := `SELECT id, project_id, year, quarter, created_at FROM returns WHERE true`
	args := []any{}
	argIdx := 1
	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND project_id = $%d`, argIdx)
		args = append(args, filter.ProjectID)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list returns")
	}
	defer rows.Close()

	var out []model.Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan return")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list returns iterate")
}

// --- Datamaps ---

func (s *PostgresStore) CreateDatamap(ctx context.Context, name, tierID string) (*model.Datamap, error) {
	dm := &model.Datamap{ID: uuid.New().String(), Name: name, TierID: tierID, Active: true}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO datamaps (id, name, tier_id, active) VALUES ($1, $2, $3, $4)`,
		dm.ID, dm.Name, nullable(tierID), true,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert datamap %s", name)
	}
	return dm, nil
}

func (s *PostgresStore) GetDatamap(ctx context.Context, id string) (*model.Datamap, error) {
	return s.getDatamap(ctx, `SELECT id, name, tier_id, active FROM datamaps WHERE id = $1`, id)
}

func (s *PostgresStore) GetDatamapByName(ctx context.Context, name string) (*model.Datamap, error) {
	return s.getDatamap(ctx, `SELECT id, name, tier_id, active FROM datamaps WHERE name = $1`, name)
}

func (s *PostgresStore) getDatamap(ctx context.Context, query, arg string) (*model.Datamap, error) {
	dm, err := scanPgDatamap(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("datamap", arg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get datamap %s", arg)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, datamap_id, key, sheet, cell_ref, data_type, required, max_length
		 FROM datamap_lines WHERE datamap_id = $1 ORDER BY position`,
		dm.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get datamap lines %s", dm.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.DatamapLine
		var dt string
		if err := rows.Scan(&l.ID, &l.DatamapID, &l.Key, &l.Sheet, &l.CellRef, &dt, &l.Required, &l.MaxLength); err != nil {
			return nil, eris.Wrap(err, "postgres: scan datamap line")
		}
		l.DataType = model.DataType(dt)
		dm.Lines = append(dm.Lines, l)
	}
	return dm, eris.Wrap(rows.Err(), "postgres: datamap lines iterate")
}

func (s *PostgresStore) ListDatamaps(ctx context.Context) ([]model.Datamap, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, tier_id, active FROM datamaps ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datamaps")
	}
	defer rows.Close()

	var out []model.Datamap
	for rows.Next() {
		dm, err := scanPgDatamap(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan datamap")
		}
		out = append(out, *dm)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list datamaps iterate")
}

var datamapLineColumns = []string{
	"id", "datamap_id", "position", "key", "sheet", "cell_ref", "data_type", "required", "max_length",
}

// AddDatamapLines appends lines through a staged upsert keyed on
// (datamap_id, sheet, cell_ref).
func (s *PostgresStore) AddDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error {
	return s.writeDatamapLines(ctx, datamapID, lines, false)
}

func (s *PostgresStore) ReplaceDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error {
	return s.writeDatamapLines(ctx, datamapID, lines, true)
}

func (s *PostgresStore) writeDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine, replace bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE((SELECT MAX(position) + 1 FROM datamap_lines WHERE datamap_id = $1), 0)
		 FROM datamaps WHERE id = $1 FOR UPDATE`,
		datamapID,
	).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("datamap", datamapID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lock datamap %s", datamapID)
	}

	if replace {
		if _, err := tx.Exec(ctx, `DELETE FROM datamap_lines WHERE datamap_id = $1`, datamapID); err != nil {
			return eris.Wrapf(err, "postgres: clear datamap lines %s", datamapID)
		}
		next = 0
	}

	rows := make([][]any, len(lines))
	for i, l := range lines {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows[i] = []any{id, datamapID, next + i, l.Key, l.Sheet, l.CellRef, string(l.DataType), l.Required, l.MaxLength}
	}

	if replace {
		if _, err := db.CopyFrom(ctx, tx, "datamap_lines", datamapLineColumns, rows); err != nil {
			return eris.Wrap(err, "postgres: copy datamap lines")
		}
	} else {
		if _, err := db.BulkUpsert(ctx, tx, db.UpsertConfig{
			Table:        "datamap_lines",
			Columns:      datamapLineColumns,
			ConflictKeys: []string{"datamap_id", "sheet", "cell_ref"},
		}, rows); err != nil {
			return eris.Wrap(err, "postgres: upsert datamap lines")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit datamap lines")
}

// --- Return items ---

var returnItemColumns = []string{
	"id", "return_id", "datamap_line_id", "key", "sheet", "cell_ref",
	"value_str", "value_int", "value_float", "value_date", "value_phone",
}

// SaveReturnItems replaces the items of a return in one transaction, loading
// the new set with COPY. A transaction that loses a deadlock or
// serialization race is retried whole.
func (s *PostgresStore) SaveReturnItems(ctx context.Context, returnID string, items []model.ReturnItem) error {
	return resilience.Do(ctx, resilience.Policy{OnRetry: resilience.LogRetry("postgres save return items")},
		func(ctx context.Context) error {
			return s.saveReturnItems(ctx, returnID, items)
		})
}

func (s *PostgresStore) saveReturnItems(ctx context.Context, returnID string, items []model.ReturnItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM returns WHERE id = $1 FOR UPDATE`, returnID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("return", returnID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lock return %s", returnID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM return_items WHERE return_id = $1`, returnID); err != nil {
		return eris.Wrapf(err, "postgres: clear return items %s", returnID)
	}

	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{
			uuid.New().String(), returnID, nullable(it.DatamapLineID), it.Key, it.Sheet, it.CellRef,
			it.ValueStr, it.ValueInt, it.ValueFloat, it.ValueDate, it.ValuePhone,
		}
	}
	if _, err := db.CopyFrom(ctx, tx, "return_items", returnItemColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy return items")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit return items")
}

func (s *PostgresStore) ListReturnItems(ctx context.Context, returnID string) ([]model.ReturnItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.return_id, COALESCE(i.datamap_line_id, ''), i.key, i.sheet, i.cell_ref,
		        i.value_str, i.value_int, i.value_float, i.value_date, i.value_phone
		 FROM return_items i
		 LEFT JOIN datamap_lines l ON l.id = i.datamap_line_id
		 WHERE i.return_id = $1
		 ORDER BY i.sheet, l.position NULLS FIRST, i.key`,
		returnID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list return items %s", returnID)
	}
	defer rows.Close()

	var out []model.ReturnItem
	for rows.Next() {
		var it model.ReturnItem
		if err := rows.Scan(&it.ID, &it.ReturnID, &it.DatamapLineID, &it.Key, &it.Sheet, &it.CellRef,
			&it.ValueStr, &it.ValueInt, &it.ValueFloat, &it.ValueDate, &it.ValuePhone); err != nil {
			return nil, eris.Wrap(err, "postgres: scan return item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list return items iterate")
}

func (s *PostgresStore) DeleteReturnItems(ctx context.Context, returnID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM return_items WHERE return_id = $1`, returnID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete return items %s", returnID)
	}
	return int(tag.RowsAffected()), nil
}

func scanPgDatamap(row scannable) (*model.Datamap, error) {
	var dm model.Datamap
	var tierID *string
	if err := row.Scan(&dm.ID, &dm.Name, &tierID, &dm.Active); err != nil {
		return nil, err
	}
	if tierID != nil {
		dm.TierID = *tierID
	}
	return &dm, nil
}
