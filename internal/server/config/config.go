// Package config handles configuration for the server component,
// including defaults, environment overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the HushDrop server.
//
// Fields:
//   - Addr: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx) or a sqlite: DSN.
//   - UploadDir: blob directory for the filesystem backend.
//   - BlobBackend: "fs" or "s3".
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - MaxUploadSizeMB: per-upload payload cap, megabytes.
//   - DefaultExpiryHours / MaxExpiryHours: retention bounds for non-permanent records.
//   - MaxPostEntries: ledger entry cap per post.
//   - SweepInterval: how often expired records are swept.
//   - WipePeriodHours: full-wipe period, 0 disables wiping.
//   - WipeAlignMidnight: align the first wipe to the next UTC midnight.
//   - AdminMessage: operator notice served on the admin endpoint.
type Config struct {
	Addr               string
	DatabaseDSN        string
	UploadDir          string
	BlobBackend        string
	S3RootUser         string
	S3RootPassword     string
	S3Bucket           string
	S3Region           string
	S3BaseEndpoint     string
	MaxUploadSizeMB    int
	DefaultExpiryHours int
	MaxExpiryHours     int
	MaxPostEntries     int
	SweepInterval      time.Duration
	WipePeriodHours    int
	WipeAlignMidnight  bool
	AdminMessage       string
}

// MaxUploadSizeBytes returns the upload cap in bytes.
func (c *Config) MaxUploadSizeBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabaseDSN = "sqlite:file:hushdrop.db?_foreign_keys=on"
	c.UploadDir = "./uploads"
	c.BlobBackend = "fs"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "hushdrop"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.MaxUploadSizeMB = 1024
	c.DefaultExpiryHours = 24
	c.MaxExpiryHours = 168
	c.MaxPostEntries = 1000
	c.SweepInterval = 1 * time.Hour
	c.WipePeriodHours = 0
	c.WipeAlignMidnight = true
	c.AdminMessage = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
