package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	settings := &conf.Settings{TargetProvider: "Starlink"}
	settings.Output.SQLite.Path = filepath.Join(dir, "ingest-test.db")

	curated := writeFile(t, dir, "curated.json", `[
		{"tail_number": "N605UX", "provider": "Starlink", "installed_on": "2025-03-01"},
		{"tail_number": "N17159"},
		{"tail_number": ""}
	]`)
	fleet := writeFile(t, dir, "fleet.json", `[
		{"tail_number": "N605UX", "aircraft_type": "E75L", "fleet_category": "express", "operator": "SkyWest"},
		{"tail_number": "N37502", "aircraft_type": "B739"}
	]`)

	require.NoError(t, Ingest(settings, curated, fleet))

	store := datastore.New(settings.Output.SQLite.Path, false)
	require.NoError(t, store.Open())
	defer store.Close()

	entries, err := store.CuratedEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2, "blank tails are skipped")
	byTail := map[string]datastore.CuratedEntry{}
	for _, e := range entries {
		byTail[e.TailNumber] = e
	}
	assert.Equal(t, "Starlink", byTail["N17159"].Provider,
		"rows without a provider default to the target provider")
	assert.Equal(t, "2025-03-01", byTail["N605UX"].InstalledOn)

	aircraft, err := store.GetAircraft("N605UX")
	require.NoError(t, err)
	assert.Equal(t, "E75L", aircraft.AircraftType)
	assert.Equal(t, datastore.StatusUnknown, aircraft.VerificationStatus)

	_, err = store.GetAircraft("N37502")
	require.NoError(t, err)
}

func TestIngestRejectsMissingInput(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "x.db")

	require.Error(t, Ingest(settings, "", ""))
	require.Error(t, Ingest(settings, filepath.Join(t.TempDir(), "absent.json"), ""))
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	settings := &conf.Settings{}
	settings.Output.SQLite.Path = filepath.Join(dir, "x.db")

	bad := writeFile(t, dir, "bad.json", `{"not": "a list"`)
	require.Error(t, Ingest(settings, bad, ""))
}
