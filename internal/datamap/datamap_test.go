package datamap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/dbasik/dbasik/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, name string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Datamap")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV_Basic(t *testing.T) {
	t.Parallel()
	in := "key,sheet,cell_ref,data_type\n" +
		"Project Name,Test Sheet 1,B1,Text\n" +
		"Total Cost,Test Sheet 1,b2,float\n" +
		"SRO,Test Sheet 1,B3,\n"

	lines, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, model.DatamapLine{Key: "Project Name", Sheet: "Test Sheet 1", CellRef: "B1", DataType: model.DataTypeText}, lines[0])
	assert.Equal(t, model.DataTypeFloat, lines[1].DataType)
	assert.Equal(t, "b2", lines[1].CellRef, "refs are normalised on import, not on read")
	assert.Equal(t, model.DataTypeNone, lines[2].DataType)
}

func TestReadCSV_OptionalDataTypeColumn(t *testing.T) {
	t.Parallel()
	lines, err := ReadCSV(strings.NewReader("Cell_Ref, Key ,SHEET\nA1,Name,Summary\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Name", lines[0].Key)
	assert.Equal(t, "Summary", lines[0].Sheet)
	assert.Equal(t, "A1", lines[0].CellRef)
}

func TestReadCSV_ByteOrderMark(t *testing.T) {
	t.Parallel()
	lines, err := ReadCSV(strings.NewReader("\ufeffkey,sheet,cell_ref\nName,Summary,A1\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Name", lines[0].Key)
}

func TestReadCSV_IncorrectHeaders(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"bcompiler layout": "cell_key,template_sheet,cell_reference\nName,Summary,A1\n",
		"missing column":   "key,sheet\nName,Summary\n",
		"unknown column":   "key,sheet,cell_ref,colour\nName,Summary,A1,red\n",
		"duplicate column": "key,sheet,cell_ref,key\nName,Summary,A1,Other\n",
		"empty file":       "",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCSV(strings.NewReader(in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncorrectHeaders))
			assert.Contains(t, err.Error(), "Incorrect headers in csv file")
		})
	}
}

func TestReadCSV_RowErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader("key,sheet,cell_ref\nName,Summary,A1\n,Summary,A2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "missing key")

	_, err = ReadCSV(strings.NewReader("key,sheet,cell_ref,data_type\nName,Summary,A1,Currency\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "unknown data type")
}

func TestReadCSV_SkipsBlankRows(t *testing.T) {
	t.Parallel()
	lines, err := ReadCSV(strings.NewReader("key,sheet,cell_ref\nName,Summary,A1\n,,\nCost,Summary,A2\n"))
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestReadFile_Dispatch(t *testing.T) {
	t.Parallel()

	csvPath := writeFile(t, "dm.csv", "key,sheet,cell_ref\nName,Summary,A1\n")
	lines, err := ReadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = ReadFile(writeFile(t, "dm.txt", "whatever"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFile))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadFile_XLSX(t *testing.T) {
	t.Parallel()
	path := createTestXLSX(t, "dm.xlsx", [][]string{
		{"key", "sheet", "cell_ref", "data_type"},
		{"Project Name", "Test Sheet 1", "B1", "Text"},
		{"Contact Phone", "Test Sheet 2", "B2", "Phone"},
	})

	lines, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Project Name", lines[0].Key)
	assert.Equal(t, model.DataTypePhone, lines[1].DataType)
	assert.Equal(t, "Test Sheet 2", lines[1].Sheet)
}

func TestReadFile_XLSXIncorrectHeaders(t *testing.T) {
	t.Parallel()
	path := createTestXLSX(t, "dm.xlsm", [][]string{
		{"Key", "Sheet"},
		{"Project Name", "Test Sheet 1"},
	})
	_, err := ReadFile(path)
	assert.True(t, errors.Is(err, ErrIncorrectHeaders))
}

func TestYAML_RoundTrip(t *testing.T) {
	t.Parallel()
	dm := &model.Datamap{
		Name: "Tier 1 Q4",
		Lines: []model.DatamapLine{
			{ID: "x", Key: "Project Name", Sheet: "Summary", CellRef: "B1"},
			{Key: "Total Cost", Sheet: "Finance", CellRef: "C10", DataType: model.DataTypeFloat, Required: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, dm))
	assert.Contains(t, buf.String(), "name: Tier 1 Q4")
	assert.NotContains(t, buf.String(), "id:")

	path := writeFile(t, "dm.yaml", buf.String())
	lines, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Project Name", lines[0].Key)
	assert.Empty(t, lines[0].ID)
	assert.Equal(t, model.DataTypeFloat, lines[1].DataType)
	assert.True(t, lines[1].Required)
}

func TestReadFile_JSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "dm.json", `[
		{"key": "Project Name", "sheet": "Summary", "cell_ref": "B1"},
		{"key": "Start", "sheet": "Summary", "cell_ref": "B2", "data_type": "date"}
	]`)
	lines, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, model.DataTypeDate, lines[1].DataType)

	_, err = ReadFile(writeFile(t, "bad.json", `{not json`))
	assert.Error(t, err)
}
