package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineUpsert = UpsertConfig{
	Table:        "datamap_lines",
	Columns:      []string{"id", "datamap_id", "key", "sheet", "cell_ref"},
	ConflictKeys: []string{"datamap_id", "sheet", "cell_ref"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, lineUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "datamap_lines",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "datamap_lines",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_InTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_datamap_lines" \(LIKE "datamap_lines" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_datamap_lines"}, lineUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "datamap_lines" .* ON CONFLICT \("datamap_id", "sheet", "cell_ref"\) DO UPDATE SET "id" = EXCLUDED."id", "key" = EXCLUDED."key"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	rows := [][]any{
		{"l1", "dm", "Name", "Summary", "B1"},
		{"l2", "dm", "Cost", "Summary", "B2"},
	}
	n, err := BulkUpsert(ctx, tx, lineUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_datamap_lines"}, lineUpsert.Columns).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err = BulkUpsert(context.Background(), mock, lineUpsert, [][]any{{"l1", "dm", "Name", "Summary", "B1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for datamap_lines")
}

func TestUpsertSQL_DoNothing(t *testing.T) {
	cfg := UpsertConfig{Table: "tiers", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	got := upsertSQL(cfg, pgx.Identifier{"_tmp"}, nil)
	assert.Equal(t, `INSERT INTO "tiers" ("id") SELECT "id" FROM "_tmp" ON CONFLICT ("id") DO NOTHING`, got)
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"simple"`, identifier("simple").Sanitize())
	assert.Equal(t, `"dbasik"."return_items"`, identifier("dbasik.return_items").Sanitize())
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
