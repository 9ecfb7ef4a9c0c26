package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

func TestSearchHitsCmd_Executes(t *testing.T) {
	hits := []domain.MultiRangeHit{{
		URL:    "https://github.com/o/r/blob/main/a.md",
		Ranges: []domain.SizeRange{{Min: 0, Max: 5000}, {Min: 0, Max: 10000}},
	}}

	t.Run("table", func(t *testing.T) {
		stdout, err := execute(t, recordingFactory(&Services{Audit: &mockAudit{hits: hits}}, new(Options)), "search-hits")

		require.NoError(t, err)
		assert.Contains(t, stdout, "2\thttps://github.com/o/r/blob/main/a.md\t0..5000,0..10000")
	})

	t.Run("json", func(t *testing.T) {
		stdout, err := execute(t, recordingFactory(&Services{Audit: &mockAudit{hits: hits}}, new(Options)),
			"search-hits", "--json")

		require.NoError(t, err)
		assert.JSONEq(t, `[{"url":"https://github.com/o/r/blob/main/a.md",
			"ranges":[{"min":0,"max":5000},{"min":0,"max":10000}]}]`, stdout)
	})

	t.Run("none", func(t *testing.T) {
		stdout, err := execute(t, recordingFactory(&Services{Audit: &mockAudit{}}, new(Options)), "search-hits")

		require.NoError(t, err)
		assert.Contains(t, stdout, "No files were returned")
	})
}
