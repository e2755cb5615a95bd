package cities

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVNamedRecordsWithHeader(t *testing.T) {
	input := "name,x,y\nA,0,0\nB, 10, 0\n\n# trailing comment\nC,10,10\n"
	cities, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cities, 3)

	assert.Equal(t, "B", cities[1].Name)
	assert.Equal(t, 10.0, cities[1].X)
	assert.Equal(t, 2, cities[2].ID)
}

func TestReadCSVCoordinateOnlyRecords(t *testing.T) {
	cities, err := ReadCSV(strings.NewReader("x,y\n1.5,2\n-3,4e1\n"))
	require.NoError(t, err)
	require.Len(t, cities, 2)

	assert.Equal(t, "0", cities[0].Name)
	assert.Equal(t, "1", cities[1].Name)
	assert.Equal(t, 40.0, cities[1].Y)
}

func TestReadCSVWithoutHeader(t *testing.T) {
	cities, err := ReadCSV(strings.NewReader("a,1,1\nb,2,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "a", cities[0].Name)
}

func TestReadCSVReportsOffendingLine(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("name,x,y\nA,0,0\nB,ten,0\n"))
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 3, malformed.Line)
	assert.Equal(t, "x", malformed.Field)
	assert.Contains(t, err.Error(), `"ten"`)
}

func TestReadCSVRejectsWrongFieldCount(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("A,0,0\nB,1,2,3\n"))
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Line)
}

func TestReadCSVRejectsShortInput(t *testing.T) {
	for _, input := range []string{"", "x,y\n", "A,1,1\n"} {
		_, err := ReadCSV(strings.NewReader(input))
		assert.True(t, IsMalformedInput(err), "input %q", input)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.csv")
	require.NoError(t, os.WriteFile(path, []byte("A,0,0\nB,3,4\n"), 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5.0, table.Distance(0, 1))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.True(t, IsMalformedInput(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
