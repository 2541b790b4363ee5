package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNewWorkbook_FillFailureReturnsNoFile(t *testing.T) {
	boom := errors.New("row write failed")
	var seen string

	// WHEN: The fill step fails part way
	f, err := newWorkbook(MovementSheet, func(f *excelize.File) error {
		seen = f.GetSheetName(0)
		return boom
	})

	// THEN: The error surfaces and no file is handed out
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, f)
	assert.Equal(t, MovementSheet, seen)
}

func TestNewWorkbook_InvalidSheetNameSkipsFill(t *testing.T) {
	called := false

	f, err := newWorkbook("bad:name", func(*excelize.File) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.Nil(t, f)
	assert.False(t, called)
}

func TestNewWorkbook_Success(t *testing.T) {
	f, err := newWorkbook(StockSheet, func(f *excelize.File) error {
		return f.SetCellValue(StockSheet, "A1", "SKU")
	})

	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(StockSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "SKU", v)
}
