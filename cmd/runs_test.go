package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "0f8c2d1e-aaaa-bbbb-cccc-000000000001",
			Params:    model.RunParams{Model: "models/ree.yaml"},
			Status:    model.RunStatusPartial,
			Summary:   &model.RunSummary{Rows: 400, Cols: 300, Blocks: 7, FailedBlocks: 2, DurationMs: 1500},
			CreatedAt: created,
			UpdatedAt: created.Add(2 * time.Second),
		},
		{
			ID:        "short",
			Params:    model.RunParams{Model: "/very/long/path/to/the/models/directory/ree.yaml"},
			Status:    model.RunStatusRunning,
			CreatedAt: created,
			UpdatedAt: created.Add(3 * time.Second),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[2], "0f8c2d1e")
	assert.NotContains(t, lines[2], "aaaa")
	assert.Contains(t, lines[2], "models/ree.yaml")
	assert.Contains(t, lines[2], "400x300")
	assert.Contains(t, lines[2], "2/7")
	assert.Contains(t, lines[2], "1.5s")
	assert.Contains(t, lines[2], "2026-03-01 09:30")

	assert.Contains(t, lines[3], "short")
	assert.Contains(t, lines[3], "...")
	assert.Contains(t, lines[3], "ree.yaml")
	assert.Contains(t, lines[3], "running")
	assert.Contains(t, lines[3], "3s")
}

func TestFormatFailures(t *testing.T) {
	fails := []model.BlockFailure{
		{ID: "12345678-abcd", Block: 3, Row0: 192, Rows: 64, ErrorType: "transient", Attempts: 3, Error: "database is locked"},
		{ID: "87654321-abcd", Block: 5, Row0: 320, Rows: 64, ErrorType: "permanent", Attempts: 1, Resolved: true,
			Error: strings.Repeat("x", 80)},
	}

	var buf bytes.Buffer
	formatFailures(&buf, fails)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[2], "12345678")
	assert.Contains(t, lines[2], "192-255")
	assert.Contains(t, lines[2], "transient")
	assert.Contains(t, lines[2], "database is locked")
	assert.Contains(t, lines[3], "true")
	assert.Contains(t, lines[3], strings.Repeat("x", 57)+"...")
	assert.NotContains(t, lines[3], strings.Repeat("x", 58))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefgh-1234"))
	assert.Equal(t, "abc", truncateID("abc"))
}
