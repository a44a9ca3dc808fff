package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dbasik/dbasik/internal/extract"
	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/store"
)

func seedDatamap(t *testing.T, st store.Store) *model.Datamap {
	t.Helper()
	ctx := context.Background()
	dm, err := st.CreateDatamap(ctx, "Test Datamap", "")
	require.NoError(t, err)
	require.NoError(t, st.AddDatamapLines(ctx, dm.ID, []model.DatamapLine{
		{Key: "Project Name", Sheet: "Test Sheet 1", CellRef: "B1"},
		{Key: "SRO Retirement Date", Sheet: "Test Sheet 1", CellRef: "B4", DataType: model.DataTypeDate},
		{Key: "Contact Phone", Sheet: "Test Sheet 2", CellRef: "B2", DataType: model.DataTypePhone},
	}))
	return dm
}

func writeTemplate(t *testing.T, dir, name string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	require.NoError(t, f.SetSheetName("Sheet1", "Test Sheet 1"))
	_, err := f.NewSheet("Test Sheet 2")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Test Sheet 1", "B1", "Testable Project"))
	require.NoError(t, f.SetCellValue("Test Sheet 1", "B4", time.Date(2022, 2, 23, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue("Test Sheet 2", "B2", "07678 877654"))
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestEnsureReturn_CreatesThenReuses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	q := model.Quarter{Year: 2018, Quarter: 4}

	first, err := ensureReturn(ctx, st, "Testable Project", "", q)
	require.NoError(t, err)
	second, err := ensureReturn(ctx, st, "Testable Project", "", q)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := ensureReturn(ctx, st, "Testable Project", "", model.Quarter{Year: 2019, Quarter: 1})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, first.ProjectID, other.ProjectID)
}

func TestProcessWorkbook_SavesItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedDatamap(t, st)
	ret, err := ensureReturn(ctx, st, "Testable Project", "", model.Quarter{Year: 2018, Quarter: 4})
	require.NoError(t, err)
	path := writeTemplate(t, t.TempDir(), "Testable Project.xlsm")

	records, err := processWorkbook(ctx, st, processRequest{
		ReturnID:        ret.ID,
		Datamap:         "Test Datamap",
		Path:            path,
		UseDatamapTypes: true,
	})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	items, err := st.ListReturnItems(ctx, ret.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	byKey := make(map[string]model.ReturnItem)
	for _, it := range items {
		byKey[it.Key] = it
	}
	assert.Equal(t, "07678 877654", byKey["Contact Phone"].Value())
	assert.Equal(t, time.Date(2022, 2, 23, 0, 0, 0, 0, time.UTC), byKey["SRO Retirement Date"].Value())
}

func TestProcessWorkbook_DryRunSavesNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedDatamap(t, st)
	path := writeTemplate(t, t.TempDir(), "populated.xlsx")

	records, err := processWorkbook(ctx, st, processRequest{Datamap: "Test Datamap", Path: path, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	returns, err := st.ListReturns(ctx, model.ReturnFilter{})
	require.NoError(t, err)
	assert.Empty(t, returns)
}

func TestProcessWorkbook_Errors(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedDatamap(t, st)
	path := writeTemplate(t, t.TempDir(), "populated.xlsm")

	_, err := processWorkbook(ctx, st, processRequest{ReturnID: "x", Datamap: "nope", Path: path})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = processWorkbook(ctx, st, processRequest{ReturnID: "missing", Datamap: "Test Datamap", Path: path})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = processWorkbook(ctx, st, processRequest{Datamap: "Test Datamap", Path: filepath.Join(t.TempDir(), "gone.xlsm"), DryRun: true})
	assert.True(t, extract.IsTemplateError(err))
}

func TestFormatItems(t *testing.T) {
	s := "Testable Project"
	n := int64(7678877654)
	f := 1200.5
	d := time.Date(2022, 2, 23, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	formatItems(&buf, []model.ReturnItem{
		{Key: "Project Name", Sheet: "Test Sheet 1", CellRef: "B1", ValueStr: &s},
		{Key: "Total Cost", Sheet: "Test Sheet 1", CellRef: "B2", ValueFloat: &f},
		{Key: "Count", Sheet: "Test Sheet 1", CellRef: "B3", ValueInt: &n},
		{Key: "SRO Retirement Date", Sheet: "Test Sheet 1", CellRef: "B4", ValueDate: &d},
		{Key: "Missing Data", Sheet: "Test Sheet 1", CellRef: "B5"},
	})

	output := buf.String()
	assert.Contains(t, output, "SHEET")
	assert.Contains(t, output, "Testable Project")
	assert.Contains(t, output, "1200.5")
	assert.Contains(t, output, "7678877654")
	assert.Contains(t, output, "2022-02-23")
	assert.Contains(t, output, "Missing Data")
}

func TestFormatDatamaps(t *testing.T) {
	dm := &model.Datamap{
		ID:     "dm-1",
		Name:   "Test Datamap",
		Active: true,
		Lines: []model.DatamapLine{
			{Key: "Project Name", Sheet: "Test Sheet 1", CellRef: "B1"},
			{Key: "Contact Phone", Sheet: "Test Sheet 2", CellRef: "B2", DataType: model.DataTypePhone},
		},
	}

	var buf bytes.Buffer
	formatDatamapsList(&buf, []model.Datamap{*dm})
	assert.Contains(t, buf.String(), "Test Datamap")
	assert.Contains(t, buf.String(), "true")

	buf.Reset()
	formatDatamapLines(&buf, dm)
	assert.Contains(t, buf.String(), "Contact Phone")
	assert.Contains(t, buf.String(), "Phone")
}

func TestFormatReturnsList(t *testing.T) {
	var buf bytes.Buffer
	formatReturnsList(&buf, []model.Return{{
		ID:        "ret-1",
		ProjectID: "proj-1",
		Quarter:   model.Quarter{Year: 2018, Quarter: 4},
		CreatedAt: time.Date(2019, 1, 10, 9, 30, 0, 0, time.UTC),
	}})
	assert.Contains(t, buf.String(), "Q4 18/19")
	assert.Contains(t, buf.String(), "2019-01-10 09:30")
}
