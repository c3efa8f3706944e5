package storage

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sample = []models.AvailabilityRecord{
	{DateRange: "Mar 1 - Mar 7, 2026", Resort: "Orange Lake Resort", Room: "Studio Villa", Points: 42000},
	{DateRange: "Mar 1 - Mar 7, 2026", Resort: "Cape Canaveral Beach Resort", Room: "1 Bedroom Villa"},
}

func TestCSVWriterAppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "availability.csv")
	w := NewCSVWriter(path, utils.NewDiscardLogger())

	require.NoError(t, w.Save(sample))
	require.NoError(t, w.Save(sample[:1]))
	require.NoError(t, w.Save(nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"Date Range", "Resort", "Room", "Points"},
		{"Mar 1 - Mar 7, 2026", "Orange Lake Resort", "Studio Villa", "42000"},
		{"Mar 1 - Mar 7, 2026", "Cape Canaveral Beach Resort", "1 Bedroom Villa", ""},
		{"Mar 1 - Mar 7, 2026", "Orange Lake Resort", "Studio Villa", "42000"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("csv rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVWriterSkipsEmptyBatchWithoutCreatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "availability.csv")
	require.NoError(t, NewCSVWriter(path, utils.NewDiscardLogger()).Save(nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestXLSXWriterCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "availability.xlsx")
	w := NewXLSXWriter(path, utils.NewDiscardLogger())

	require.NoError(t, w.Save(sample))
	require.NoError(t, w.Save(sample[:1]))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, sheetName, f.GetSheetName(0))
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, models.RecordHeader, rows[0])
	assert.Equal(t, []string{"Mar 1 - Mar 7, 2026", "Orange Lake Resort", "Studio Villa", "42000"}, rows[1])
	assert.Equal(t, "Cape Canaveral Beach Resort", rows[2][1])
	assert.Equal(t, "Orange Lake Resort", rows[3][1])
}

type recordingSink struct {
	saved  int
	err    error
	closed bool
}

func (s *recordingSink) Save(records []models.AvailabilityRecord) error {
	s.saved += len(records)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestMultiSinkWritesEverySinkAndJoinsErrors(t *testing.T) {
	boom := errors.New("disk full")
	a, b, c := &recordingSink{}, &recordingSink{err: boom}, &recordingSink{}
	m := MultiSink{a, b, c}

	err := m.Save(sample)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 2, a.saved)
	assert.Equal(t, 2, c.saved)

	require.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}
