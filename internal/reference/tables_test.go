package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	tbl, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "AUD", tbl.Currency())
	assert.InDelta(t, 4.20, tbl.Levy().BaseRatePerSqm, 1e-9)
	assert.Equal(t, 5, tbl.Levy().FloorThreshold)
	assert.InDelta(t, 1.25, tbl.TypeMultiplier("2-bedroom"), 1e-9)
	assert.Equal(t, []string{"emergency", "urgent", "normal", "low"}, tbl.Urgencies())
	assert.Len(t, tbl.RequestTypes(), 7)
	assert.Len(t, tbl.Events(), 3)
}

func TestEveryRequestTypeHasContractorForEveryUrgency(t *testing.T) {
	tbl := MustLoad()
	for _, rt := range tbl.RequestTypes() {
		c, ok := tbl.Contractor(rt)
		require.True(t, ok, rt)
		for _, u := range tbl.Urgencies() {
			assert.NotEmpty(t, c.ResponseTime[u], "%s/%s", rt, u)
		}
	}
}

func TestDefaultsAndFallbacks(t *testing.T) {
	tbl := MustLoad()
	assert.InDelta(t, 1.0, tbl.TypeMultiplier("castle"), 1e-9)
	assert.InDelta(t, 1.0, tbl.CompletionMultiplier("other"), 1e-9)
	assert.InDelta(t, 1.0, tbl.CompletionMultiplier("unmapped"), 1e-9)
	assert.InDelta(t, 3.0, tbl.CompletionMultiplier("structural"), 1e-9)
	assert.Equal(t, 0, tbl.UrgencyRank("emergency"))
	assert.Equal(t, 3, tbl.UrgencyRank("low"))
	assert.Equal(t, 4, tbl.UrgencyRank("someday"))
}

func TestAccessorsReturnCopies(t *testing.T) {
	tbl := MustLoad()
	kw := tbl.EmergencyKeywords()
	kw[0] = "mutated"
	assert.NotEqual(t, "mutated", tbl.EmergencyKeywords()[0])

	c, _ := tbl.Contractor("plumbing")
	c.ResponseTime["emergency"] = "never"
	again, _ := tbl.Contractor("plumbing")
	assert.Equal(t, "30 minutes", again.ResponseTime["emergency"])

	rates := tbl.Levy()
	rates.UnitTypes["studio"] = 9
	assert.InDelta(t, 1.0, tbl.TypeMultiplier("studio"), 1e-9)
}

func TestLoadFile_RejectsOversoldSeed(t *testing.T) {
	src, err := os.ReadFile("tables.cue")
	require.NoError(t, err)
	bad := append(src, []byte(`
events: [{current_rsvps: 99}, _, _]
`)...)
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, bad, 0o600))

	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"))
	assert.Error(t, err)
}
