package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/panel-cli/internal/config"
	"github.com/cohortlab/panel-cli/internal/model"
)

func TestBuildSpec(t *testing.T) {
	dc := config.DeriveConfig{
		ScaleColumn:     "fs_scale",
		StatusColumn:    "fs_status",
		StatusThreshold: 2,
		ClosenessColumn: "tch_close",
		ConflictColumn:  "tch_conflict",
		RankColumn:      "ses",
		BaselineWave:    2,
		WaveTimes:       map[string]int{"2": 0, "4": 1, "9": 2},
	}

	spec, err := buildSpec(dc)
	require.NoError(t, err)

	assert.Equal(t, "fs_scale", spec.ScaleColumn)
	assert.Equal(t, 2, spec.BaselineWave)
	assert.Equal(t, map[int]int{2: 0, 4: 1, 9: 2}, spec.WaveTimes)
}

func TestBuildSpecRejectsNonIntegerWave(t *testing.T) {
	dc := config.DeriveConfig{WaveTimes: map[string]int{"spring": 0}}
	_, err := buildSpec(dc)
	require.Error(t, err)
}

func TestFormatRunsList(t *testing.T) {
	runs := []model.Run{
		{
			ID:     "0123456789abcdef",
			Source: "https://archive.example.com/very/long/path/to/the/extract/file.csv",
			Status: model.RunStatusComplete,
			Diagnostics: &model.Diagnostics{
				Rows:     63630,
				Subjects: 21210,
			},
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        "fedcba9876543210",
			Source:    "local.csv",
			Status:    model.RunStatusComplete,
			CreatedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef", "ids are truncated for display")
	assert.Contains(t, out, "...", "long sources are truncated")
	assert.Contains(t, out, "63630")
	assert.Contains(t, out, "local.csv")
	assert.Contains(t, out, "2026-03-02 09:30")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "01234567", truncateID("0123456789abcdef"))
	assert.Equal(t, "short", truncateID("short"))
}
