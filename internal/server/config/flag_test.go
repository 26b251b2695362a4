package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-u", "/tmp/blobs", "-k", "s3",
			"-m", "64", "-x", "12", "-y", "72", "-n", "50", "-i", "30", "-w", "24",
		}, expectPanic: false,
			expected: &Config{
				Addr:               "127.0.0.1:9090",
				DatabaseDSN:        "db",
				UploadDir:          "/tmp/blobs",
				BlobBackend:        "s3",
				MaxUploadSizeMB:    64,
				DefaultExpiryHours: 12,
				MaxExpiryHours:     72,
				MaxPostEntries:     50,
				SweepInterval:      30 * time.Minute,
				WipePeriodHours:    24,
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Equal(t, tt.expected, config)
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestParseFlags_KeepsSubMinuteSweepInterval(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)
	os.Args = []string{"cmd"}

	config := &Config{SweepInterval: 30 * time.Second}
	parseFlags(config)

	// Without -i the earlier overlays win; rounding through minutes would
	// truncate 30s to zero.
	assert.Equal(t, 30*time.Second, config.SweepInterval)
}

func TestParseFlags_SweepIntervalFlagWins(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)
	os.Args = []string{"cmd", "-i", "15"}

	config := &Config{SweepInterval: 30 * time.Second}
	parseFlags(config)

	assert.Equal(t, 15*time.Minute, config.SweepInterval)
}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-a", ":8080", "-z", "junk"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":8080"},
		},
		{
			name:    "equals form",
			args:    []string{"-d=db", "--other=skip"},
			allowed: []string{"-d"},
			want:    []string{"-d=db"},
		},
		{
			name:    "test runner flags are dropped",
			args:    []string{"-test.v", "-test.run=TestX", "-a", ":9090"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":9090"},
		},
		{
			name:    "empty input",
			args:    []string{},
			allowed: []string{"-a"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterArgs(tt.args, tt.allowed))
		})
	}
}
