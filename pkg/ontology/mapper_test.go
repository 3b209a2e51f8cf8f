package ontology

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oboFixture = `format-version: 1.2

[Term]
id: HP:0001250
name: Seizure
synonym: "seizures" EXACT []
synonym: "epileptic seizure" EXACT []

[Term]
id: HP:0004322
name: Short stature

[Term]
id: HP:0009999
name: Gone
is_obsolete: true
`

func writeOntology(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hpo.obo")
	require.NoError(t, os.WriteFile(p, []byte(oboFixture), 0o644))
	return p
}

func newTestMapper(t *testing.T, threshold int) *Mapper {
	t.Helper()
	m, err := NewMapper(context.Background(), Options{
		Sources:        []SourceConfig{{ID: "HPO", File: writeOntology(t), Format: "obo"}},
		Defaults:       []string{"HPO"},
		FuzzyThreshold: threshold,
	}, nil)
	require.NoError(t, err)
	return m
}

func TestParseOBO(t *testing.T) {
	terms, err := ParseFile(writeOntology(t), "obo")
	require.NoError(t, err)
	assert.Equal(t, "HP:0001250", terms["seizure"])
	assert.Equal(t, "HP:0001250", terms["seizures"], "synonyms map to the canonical id")
	assert.Equal(t, "HP:0004322", terms["short stature"])
	assert.NotContains(t, terms, "gone", "obsolete terms are dropped")
}

func TestMapTermExactAndCase(t *testing.T) {
	m := newTestMapper(t, 0)
	got := m.MapTerm("  SEIZURE ", nil, nil)
	assert.Equal(t, "HP:0001250", got["HPO"])
}

func TestCustomMappingPrecedence(t *testing.T) {
	m, err := NewMapper(context.Background(), Options{
		Sources: []SourceConfig{
			{ID: "HPO", File: writeOntology(t), Format: "obo"},
			{ID: "DO", File: writeOntology(t), Format: "obo"},
		},
		Defaults:       []string{"HPO", "DO"},
		FuzzyThreshold: 101, // fuzzy can never fire
	}, nil)
	require.NoError(t, err)

	custom := map[string]string{"seizure": "HP:0001250"}
	got := m.MapTerm("Seizure", nil, custom)
	// the single custom id lands on every requested target ontology
	assert.Equal(t, TermMapping{"HPO": "HP:0001250", "DO": "HP:0001250"}, got)
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	score := TokenSortRatio("short statur", "short stature")
	require.Greater(t, score, 0)
	require.Less(t, score, 100)

	at := newTestMapper(t, score)
	got := at.MapTerm("short statur", nil, nil)
	assert.Equal(t, "HP:0004322", got["HPO"], "score equal to the threshold maps")

	above := newTestMapper(t, score+1)
	got = above.MapTerm("short statur", nil, nil)
	assert.Equal(t, "", got["HPO"], "one point below the threshold does not map")
}

func TestTokenSortRatioOrderInsensitive(t *testing.T) {
	assert.Equal(t, 100, TokenSortRatio("stature short", "short stature"))
	assert.Equal(t, 100, TokenSortRatio("", ""))
	assert.Greater(t, TokenSortRatio("seizure", "seizures"), 80)
}

func TestMapTermsDeduplicates(t *testing.T) {
	m := newTestMapper(t, 0)
	out := m.MapTerms([]string{"seizure", "seizure", "short stature"}, nil, nil)
	assert.Len(t, out, 2)
}

func TestCacheFetchAndExpiry(t *testing.T) {
	downloads := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads++
		_, _ = w.Write([]byte(oboFixture))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewCache(dir, 30)
	c.Client = srv.Client()

	p1, err := c.Fetch(context.Background(), "HPO", srv.URL, "obo")
	require.NoError(t, err)
	p2, err := c.Fetch(context.Background(), "HPO", srv.URL, "obo")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, downloads, "fresh cache entry is reused")

	// age the entry past expiry
	old := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(p1, old, old))
	_, err = c.Fetch(context.Background(), "HPO", srv.URL, "obo")
	require.NoError(t, err)
	assert.Equal(t, 2, downloads, "expired entry is re-downloaded")
}

func TestMapperLoadFailureWrapsSentinel(t *testing.T) {
	_, err := NewMapper(context.Background(), Options{
		Sources: []SourceConfig{{ID: "HPO", File: "/does/not/exist.obo", Format: "obo"}},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOntologyLoad)
}
