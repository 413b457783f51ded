package items

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "prodfetch/pkg/errors"
)

func TestParse(t *testing.T) {
	data := "Name,Item Code,Qty\nWidget,A1,3\nGadget, A2 ,1\nBlank,,0\nShort\n"

	rows, err := Parse(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{Line: 2, Code: "A1"},
		{Line: 3, Code: "A2"},
		{Line: 4, Code: ""},
		{Line: 5, Code: ""},
	}, rows)
}

func TestParseBOMHeader(t *testing.T) {
	rows, err := Parse(strings.NewReader("\ufeffItem Code\nX9\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "X9", rows[0].Code)
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Code\nA1\n"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeInput, errs.TypeOf(err))
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("Item Code\nA1\nA2\n"), 0644))

	rows, err := Source{Path: path}.Load()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
