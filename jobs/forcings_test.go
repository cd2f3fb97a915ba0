package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
)

func TestTimeRangeValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		tr      TimeRange
		wantErr string
	}{
		{
			name: "valid",
			tr:   TimeRange{ForcingDir: dir, StartTime: "2020-01-01T00:00", EndTime: "2020-02-01T00:00"},
		},
		{
			name:    "missing dir",
			tr:      TimeRange{StartTime: "2020-01-01T00:00", EndTime: "2020-02-01T00:00"},
			wantErr: "forcing_dir is required",
		},
		{
			name:    "dir does not exist",
			tr:      TimeRange{ForcingDir: filepath.Join(dir, "absent"), StartTime: "2020-01-01T00:00", EndTime: "2020-02-01T00:00"},
			wantErr: "not a directory",
		},
		{
			name:    "missing start",
			tr:      TimeRange{ForcingDir: dir, EndTime: "2020-02-01T00:00"},
			wantErr: "start_time is required",
		},
		{
			name:    "bad format",
			tr:      TimeRange{ForcingDir: dir, StartTime: "2020-01-01 00:00:00", EndTime: "2020-02-01T00:00"},
			wantErr: "is not",
		},
		{
			name:    "end before start",
			tr:      TimeRange{ForcingDir: dir, StartTime: "2020-02-01T00:00", EndTime: "2020-01-01T00:00"},
			wantErr: "end_time must be after start_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tr.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		})
	}
}

func TestForcingsWritesConfig(t *testing.T) {
	dir := t.TempDir()
	tr := TimeRange{ForcingDir: dir, StartTime: "2020-01-01T00:00", EndTime: "2020-02-01T00:00"}

	msg, err := Forcings(context.Background(), tr, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Contains(t, msg, "forcings written to")

	raw, err := os.ReadFile(filepath.Join(dir, "forcings.json"))
	require.NoError(t, err)
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.Equal(t, "2020-01-01T00:00", cfg["start_time"])
	assert.Equal(t, dir, cfg["forcing_dir"])
}

func TestRealizationWritesConfig(t *testing.T) {
	dir := t.TempDir()
	tr := TimeRange{ForcingDir: dir, StartTime: "2020-01-01T00:00", EndTime: "2020-02-01T00:00"}

	msg, err := Realization(context.Background(), tr, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Contains(t, msg, "realization written to")

	raw, err := os.ReadFile(filepath.Join(dir, "realization.json"))
	require.NoError(t, err)
	var cfg struct {
		Time struct {
			StartTime      string `json:"start_time"`
			OutputInterval int    `json:"output_interval"`
		} `json:"time"`
	}
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.Equal(t, "2020-01-01T00:00", cfg.Time.StartTime)
	assert.Equal(t, 3600, cfg.Time.OutputInterval)
}

func TestRealizationRejectsInvalidRange(t *testing.T) {
	_, err := Realization(context.Background(), TimeRange{}, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
