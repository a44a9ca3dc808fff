package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dbasik/dbasik/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and enables foreign key enforcement.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; batch runs share this store.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tiers (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	slug        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE,
	tier_id TEXT REFERENCES tiers(id)
);

CREATE TABLE IF NOT EXISTS returns (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	year       INTEGER NOT NULL,
	quarter    INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (project_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS datamaps (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	tier_id    TEXT REFERENCES tiers(id),
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS datamap_lines (
	id         TEXT PRIMARY KEY,
	datamap_id TEXT NOT NULL REFERENCES datamaps(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	key        TEXT NOT NULL,
	sheet      TEXT NOT NULL,
	cell_ref   TEXT NOT NULL,
	data_type  TEXT NOT NULL DEFAULT '',
	required   INTEGER NOT NULL DEFAULT 0,
	max_length INTEGER NOT NULL DEFAULT 0,
	UNIQUE (datamap_id, sheet, cell_ref),
	UNIQUE (datamap_id, sheet, key)
);

CREATE TABLE IF NOT EXISTS return_items (
	id              TEXT PRIMARY KEY,
	return_id       TEXT NOT NULL REFERENCES returns(id) ON DELETE CASCADE,
	datamap_line_id TEXT REFERENCES datamap_lines(id) ON DELETE SET NULL,
	key             TEXT NOT NULL,
	sheet           TEXT NOT NULL,
	cell_ref        TEXT NOT NULL,
	value_str       TEXT,
	value_int       INTEGER,
	value_float     REAL,
	value_date      TEXT,
	value_phone     TEXT
);

CREATE INDEX IF NOT EXISTS idx_returns_project ON returns(project_id);
CREATE INDEX IF NOT EXISTS idx_datamap_lines_datamap ON datamap_lines(datamap_id, position);
CREATE INDEX IF NOT EXISTS idx_return_items_return ON return_items(return_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Register ---

func (s *SQLiteStore) CreateTier(ctx context.Context, name, description string) (*model.Tier, error) {
	t := &model.Tier{ID: uuid.New().String(), Name: name, Slug: slugify(name), Description: description}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tiers (id, name, slug, description) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.Slug, t.Description,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert tier %s", name)
	}
	return t, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, name, tierID string) (*model.Project, error) {
	p := &model.Project{ID: uuid.New().String(), Name: name, TierID: tierID}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, tier_id) VALUES (?, ?, ?)`,
		p.ID, p.Name, nullable(tierID),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert project %s", name)
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.getProject(ctx, `SELECT id, name, tier_id FROM projects WHERE id = ?`, id)
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*model.Project, error) {
	return s.getProject(ctx, `SELECT id, name, tier_id FROM projects WHERE name = ?`, name)
}

func (s *SQLiteStore) getProject(ctx context.Context, query, arg string) (*model.Project, error) {
	var p model.Project
	var tierID sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &tierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", arg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", arg)
	}
	p.TierID = tierID.String
	return &p, nil
}

// --- Returns ---

func (s *SQLiteStore) CreateReturn(ctx context.Context, projectID string, q model.Quarter) (*model.Return, error) {
	r := &model.Return{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Quarter:   q,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO returns (id, project_id, year, quarter, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, q.Year, q.Quarter, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert return for project %s", projectID)
	}
	return r, nil
}

func (s *SQLiteStore) GetReturn(ctx context.Context, id string) (*model.Return, error) {
	r, err := scanReturn(s.db.QueryRowContext(ctx,
		`SELECT id, project_id, year, quarter, created_at FROM returns WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("return", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get return %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListReturns(ctx context.Context, filter model.ReturnFilter) ([]model.Return, error) {
	query := `SELECT id, project_id, year, quarter, created_at FROM returns WHERE 1=1`
	var args []any
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list returns")
	}
	defer rows.Close()

	var out []model.Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan return")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list returns iterate")
}

// --- Datamaps ---

func (s *SQLiteStore) CreateDatamap(ctx context.Context, name, tierID string) (*model.Datamap, error) {
	dm := &model.Datamap{ID: uuid.New().String(), Name: name, TierID: tierID, Active: true}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datamaps (id, name, tier_id, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		dm.ID, dm.Name, nullable(tierID), true, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert datamap %s", name)
	}
	return dm, nil
}

func (s *SQLiteStore) GetDatamap(ctx context.Context, id string) (*model.Datamap, error) {
	return s.getDatamap(ctx, `SELECT id, name, tier_id, active FROM datamaps WHERE id = ?`, id)
}

func (s *SQLiteStore) GetDatamapByName(ctx context.Context, name string) (*model.Datamap, error) {
	return s.getDatamap(ctx, `SELECT id, name, tier_id, active FROM datamaps WHERE name = ?`, name)
}

func (s *SQLiteStore) getDatamap(ctx context.Context, query, arg string) (*model.Datamap, error) {
	dm, err := scanDatamap(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("datamap", arg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get datamap %s", arg)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, datamap_id, key, sheet, cell_ref, data_type, required, max_length
		 FROM datamap_lines WHERE datamap_id = ? ORDER BY position`,
		dm.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get datamap lines %s", dm.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.DatamapLine
		if err := rows.Scan(&l.ID, &l.DatamapID, &l.Key, &l.Sheet, &l.CellRef, &l.DataType, &l.Required, &l.MaxLength); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan datamap line")
		}
		dm.Lines = append(dm.Lines, l)
	}
	return dm, eris.Wrap(rows.Err(), "sqlite: datamap lines iterate")
}

func (s *SQLiteStore) ListDatamaps(ctx context.Context) ([]model.Datamap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, tier_id, active FROM datamaps ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datamaps")
	}
	defer rows.Close()

	var out []model.Datamap
	for rows.Next() {
		dm, err := scanDatamap(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan datamap")
		}
		out = append(out, *dm)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list datamaps iterate")
}

func (s *SQLiteStore) AddDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error {
	return s.writeDatamapLines(ctx, datamapID, lines, false)
}

func (s *SQLiteStore) ReplaceDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error {
	return s.writeDatamapLines(ctx, datamapID, lines, true)
}

func (s *SQLiteStore) writeDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine, replace bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM datamaps WHERE id = ?`, datamapID).Scan(&exists); err != nil {
		return eris.Wrapf(err, "sqlite: check datamap %s", datamapID)
	}
	if exists == 0 {
		return notFound("datamap", datamapID)
	}

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM datamap_lines WHERE datamap_id = ?`, datamapID); err != nil {
			return eris.Wrapf(err, "sqlite: clear datamap lines %s", datamapID)
		}
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM datamap_lines WHERE datamap_id = ?`, datamapID,
	).Scan(&next); err != nil {
		return eris.Wrapf(err, "sqlite: next line position %s", datamapID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO datamap_lines (id, datamap_id, position, key, sheet, cell_ref, data_type, required, max_length)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert datamap line")
	}
	defer stmt.Close()

	for i, l := range lines {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, id, datamapID, next+i, l.Key, l.Sheet, l.CellRef,
			string(l.DataType), l.Required, l.MaxLength); err != nil {
			return eris.Wrapf(err, "sqlite: insert datamap line %s", l.Key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit datamap lines")
}

// --- Return items ---

// SaveReturnItems replaces the items of a return in one transaction.
func (s *SQLiteStore) SaveReturnItems(ctx context.Context, returnID string, items []model.ReturnItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM returns WHERE id = ?`, returnID).Scan(&exists); err != nil {
		return eris.Wrapf(err, "sqlite: check return %s", returnID)
	}
	if exists == 0 {
		return notFound("return", returnID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM return_items WHERE return_id = ?`, returnID); err != nil {
		return eris.Wrapf(err, "sqlite: clear return items %s", returnID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO return_items (id, return_id, datamap_line_id, key, sheet, cell_ref,
		 value_str, value_int, value_float, value_date, value_phone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert return item")
	}
	defer stmt.Close()

	for _, it := range items {
		var date any
		if it.ValueDate != nil {
			date = it.ValueDate.Format(dateLayout)
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), returnID, nullable(it.DatamapLineID), it.Key, it.Sheet, it.CellRef,
			it.ValueStr, it.ValueInt, it.ValueFloat, date, it.ValuePhone,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert return item %s", it.Key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit return items")
}

func (s *SQLiteStore) ListReturnItems(ctx context.Context, returnID string) ([]model.ReturnItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.return_id, i.datamap_line_id, i.key, i.sheet, i.cell_ref,
		        i.value_str, i.value_int, i.value_float, i.value_date, i.value_phone
		 FROM return_items i
		 LEFT JOIN datamap_lines l ON l.id = i.datamap_line_id
		 WHERE i.return_id = ?
		 ORDER BY i.sheet, l.position, i.key`,
		returnID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list return items %s", returnID)
	}
	defer rows.Close()

	var out []model.ReturnItem
	for rows.Next() {
		var (
			it     model.ReturnItem
			lineID sql.NullString
			str    sql.NullString
			i64    sql.NullInt64
			f64    sql.NullFloat64
			date   sql.NullString
			phone  sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.ReturnID, &lineID, &it.Key, &it.Sheet, &it.CellRef,
			&str, &i64, &f64, &date, &phone); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan return item")
		}
		it.DatamapLineID = lineID.String
		if str.Valid {
			it.ValueStr = &str.String
		}
		if i64.Valid {
			it.ValueInt = &i64.Int64
		}
		if f64.Valid {
			it.ValueFloat = &f64.Float64
		}
		if date.Valid {
			d, err := time.Parse(dateLayout, date.String)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: parse value_date of %s", it.Key)
			}
			it.ValueDate = &d
		}
		if phone.Valid {
			it.ValuePhone = &phone.String
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list return items iterate")
}

func (s *SQLiteStore) DeleteReturnItems(ctx context.Context, returnID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM return_items WHERE return_id = ?`, returnID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete return items %s", returnID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanReturn(row scannable) (*model.Return, error) {
	var r model.Return
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Quarter.Year, &r.Quarter.Quarter, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanDatamap(row scannable) (*model.Datamap, error) {
	var dm model.Datamap
	var tierID sql.NullString
	if err := row.Scan(&dm.ID, &dm.Name, &tierID, &dm.Active); err != nil {
		return nil, err
	}
	dm.TierID = tierID.String
	return &dm, nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
