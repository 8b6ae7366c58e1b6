package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 8, 25, 22, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:     "abc12345-6789-0000-0000-000000000000",
			County: model.CountyJob{Name: "Brevard", CoNo: 5, Slug: "brevard"},
			Status: model.RunStatusComplete,
			Result: &model.RunResult{
				ModeUsed:          2,
				DistrictsUpserted: 8,
			},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			County:    model.CountyJob{Name: "Glades", CoNo: 22, Slug: "glades"},
			Status:    model.RunStatusQueued,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "COUNTY")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "Brevard")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "Glades")
	assert.Contains(t, output, "queued")
	assert.Contains(t, output, "2026-08-25 22:30")
	assert.Contains(t, output, "abc12345")
}

func TestFormatRunsList_NoResultShowsDash(t *testing.T) {
	runs := []model.Run{
		{
			ID:        "aaa11111-0000-0000-0000-000000000000",
			County:    model.CountyJob{Name: "Union", CoNo: 63},
			Status:    model.RunStatusRunning,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	assert.Contains(t, buf.String(), "-")
}

func TestFormatSnapshot(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		RunsTotal:          10,
		RunsComplete:       6,
		RunsEscalated:      3,
		RunsQueued:         1,
		EscalationRate:     1.0 / 3.0,
		ModeUsed1:          1,
		ModeUsed2:          5,
		ModeUsed3:          3,
		DistrictsUpserted:  40,
		StandardsUpserted:  120,
		UsesUpserted:       65,
		TotalTokens:        250000,
		TotalCostUSD:       0.45,
		AvgDurationSeconds: 61.2,
		LookbackHours:      24,
	}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "last 24h")
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "33.3%")
	assert.Contains(t, output, "1 / 5 / 3")
	assert.Contains(t, output, "250000")
	assert.Contains(t, output, "$0.45")
	assert.Contains(t, output, "61.2s")
}

func TestFormatSnapshot_EmptyWindow(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{LookbackHours: 24}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.NotContains(t, output, "Tokens:")
	assert.NotContains(t, output, "Avg duration:")
}

func TestHoursIn(t *testing.T) {
	assert.Equal(t, 24, hoursIn(24*time.Hour))
	assert.Equal(t, 1, hoursIn(30*time.Minute))
	assert.Equal(t, 2, hoursIn(90*time.Minute))
	assert.Equal(t, 168, hoursIn(7*24*time.Hour))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
