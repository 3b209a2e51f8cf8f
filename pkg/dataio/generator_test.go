package dataio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDirtyCSVDeterministic(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.csv")
	p2 := filepath.Join(dir, "b.csv")
	opt := GeneratorOptions{Rows: 50, Seed: 7}

	require.NoError(t, WriteDirtyCSV(p1, opt))
	require.NoError(t, WriteDirtyCSV(p2, opt))

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "same seed, same bytes")

	lines := strings.Split(strings.TrimRight(string(b1), "\n"), "\n")
	require.Len(t, lines, 51)
	assert.Equal(t, "SampleID,ObservedPhenotype,Measurement,RecordedDate,Source", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "SAMP-00001,"))
}

func TestWriteDirtyCSVInjectsDefects(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dirty.csv")
	require.NoError(t, WriteDirtyCSV(p, GeneratorOptions{Rows: 500, Seed: 1, MissingRate: 0.2, InvalidRate: 0.1, DuplicateRate: 0.1}))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	content := string(b)
	assert.Contains(t, content, "not-a-date")
	assert.Contains(t, content, ",,", "some cells are left missing")

	ids := make(map[string]int)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n")[1:] {
		ids[strings.SplitN(line, ",", 2)[0]]++
	}
	dup := false
	for _, n := range ids {
		if n > 1 {
			dup = true
		}
	}
	assert.True(t, dup, "duplicate identifiers appear at this rate")
}
