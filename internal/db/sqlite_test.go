package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thesavant42/dragos-portal/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "cache", "dragos.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestUpsertIndicatorsReplacesByID(t *testing.T) {
	database := openTestDB(t)

	ind := models.Indicator{ID: 7, Value: "evil.example", IndicatorType: "domain", ActivityGroups: []string{"A", "B"}}
	require.NoError(t, database.UpsertIndicators([]models.IndicatorRecord{ind.ToRecord()}))

	ind.Comment = "updated"
	require.NoError(t, database.UpsertIndicators([]models.IndicatorRecord{ind.ToRecord()}))

	count, err := database.CountIndicators()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := database.GetIndicator(7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "updated", got.Comment)
	assert.Equal(t, "A;B", got.ActivityGroups)
}

func TestUpsertReportsReplacesBySerial(t *testing.T) {
	database := openTestDB(t)

	r := models.Report{Serial: "DOM-1", Title: "first", ThreatLevel: 2, Tags: []models.Tag{{Text: "APT", TagType: "actor"}}}
	require.NoError(t, database.UpsertReports([]models.ReportRecord{r.ToRecord()}))

	r.Title = "second"
	require.NoError(t, database.UpsertReports([]models.ReportRecord{r.ToRecord()}))

	count, err := database.CountReports()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := database.GetReport("DOM-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Title)
	assert.Equal(t, 2, got.ThreatLevel)
	assert.Equal(t, "APT (actor)", got.Tags)

	missing, err := database.GetReport("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLastRun(t *testing.T) {
	database := openTestDB(t)

	_, ok, err := database.LastRun()
	require.NoError(t, err)
	assert.False(t, ok)

	older := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	require.NoError(t, database.AppendRunLog(newer, 5))
	require.NoError(t, database.AppendRunLog(older, 3))

	last, ok, err := database.LastRun()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, newer.Equal(last), "got %s", last)
}

func TestPurgeIndicators(t *testing.T) {
	database := openTestDB(t)

	records := []models.IndicatorRecord{{ID: 1, Value: "a"}, {ID: 2, Value: "b"}}
	require.NoError(t, database.UpsertIndicators(records))
	require.NoError(t, database.PurgeIndicators())

	count, err := database.CountIndicators()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestParseTimestamp(t *testing.T) {
	for _, ts := range []string{
		"2024-03-01T12:00:00Z",
		"2024-03-01 12:00:00",
		"2024-03-01 12:00:00.123456",
		"2024-03-01T12:00:00.5+00:00",
	} {
		t.Run(ts, func(t *testing.T) {
			_, err := parseTimestamp(ts)
			assert.NoError(t, err)
		})
	}

	_, err := parseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestListReportsNewestFirst(t *testing.T) {
	database := openTestDB(t)

	records := []models.ReportRecord{
		{Serial: "DOM-1", Title: "old", ReleaseDate: "2023-01-01"},
		{Serial: "DOM-2", Title: "new", ReleaseDate: "2024-06-01"},
	}
	require.NoError(t, database.UpsertReports(records))

	reports, err := database.ListReports()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "DOM-2", reports[0].Serial)
	assert.Equal(t, "DOM-1", reports[1].Serial)
}

func TestIndicatorTypeCounts(t *testing.T) {
	database := openTestDB(t)

	records := []models.IndicatorRecord{
		{ID: 1, Value: "a.example", IndicatorType: "domain"},
		{ID: 2, Value: "b.example", IndicatorType: "domain"},
		{ID: 3, Value: "10.0.0.1", IndicatorType: "ip"},
	}
	require.NoError(t, database.UpsertIndicators(records))

	counts, err := database.IndicatorTypeCounts()
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{IndicatorType: "domain", Count: 2}, {IndicatorType: "ip", Count: 1}}, counts)
}

func TestRecentRuns(t *testing.T) {
	database := openTestDB(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, database.AppendRunLog(base.Add(time.Duration(i)*time.Hour), i*10))
	}

	runs, err := database.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, base.Add(2*time.Hour).Equal(runs[0].Date))
	assert.Equal(t, 20, runs[0].Count)
	assert.Equal(t, 10, runs[1].Count)
}
