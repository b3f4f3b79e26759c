package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    config
		wantErr bool
	}{
		{
			name: "defaults",
			want: config{
				listenAddr:   ":3000",
				staticDir:    "",
				logLevel:     "info",
				roomCapacity: 20,
				historyLimit: 10000,
				frameLimit:   512,
			},
		},
		{
			name: "environment",
			env: map[string]string{
				"WHITEBOARD_LISTEN_ADDR":   ":8080",
				"WHITEBOARD_STATIC_DIR":    "public",
				"WHITEBOARD_LOG_LEVEL":     "debug",
				"WHITEBOARD_ROOM_CAPACITY": "5",
				"WHITEBOARD_FRAME_LIMIT":   "not a number",
			},
			want: config{
				listenAddr:   ":8080",
				staticDir:    "public",
				logLevel:     "debug",
				roomCapacity: 5,
				historyLimit: 10000,
				frameLimit:   512,
			},
		},
		{
			name: "flags win over environment",
			args: []string{"-a", ":9000", "--static-dir", "", "--history-limit", "100"},
			env:  map[string]string{"WHITEBOARD_LISTEN_ADDR": ":8080", "WHITEBOARD_STATIC_DIR": "public"},
			want: config{
				listenAddr:   ":9000",
				staticDir:    "",
				logLevel:     "info",
				roomCapacity: 20,
				historyLimit: 100,
				frameLimit:   512,
			},
		},
		{
			name:    "non positive limit",
			args:    []string{"--room-capacity", "0"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig(tt.args, envMap(tt.env))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	f := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(f, []byte("WHITEBOARD_TEST_LOG_LEVEL=trace\n"), 0o600))
	t.Setenv("WHITEBOARD_TEST_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("WHITEBOARD_TEST_LOG_LEVEL"))

	loadEnv(filepath.Join(t.TempDir(), "missing.env"), f)
	assert.Equal(t, "trace", os.Getenv("WHITEBOARD_TEST_LOG_LEVEL"))
}
