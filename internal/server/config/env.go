package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables take precedence over it. Unset variables leave the current value
// untouched, and values that fail to parse are ignored.
func parseEnv(config *Config) {
	// Missing .env is not an error, the environment may be set directly.
	_ = godotenv.Load()

	setString(&config.Addr, "HUSHDROP_ADDR")
	setString(&config.DatabaseDSN, "HUSHDROP_DATABASE_DSN")
	setString(&config.UploadDir, "HUSHDROP_UPLOAD_DIR")
	setString(&config.BlobBackend, "HUSHDROP_BLOB_BACKEND")
	setString(&config.S3RootUser, "HUSHDROP_S3_ROOT_USER")
	setString(&config.S3RootPassword, "HUSHDROP_S3_ROOT_PASSWORD")
	setString(&config.S3Bucket, "HUSHDROP_S3_BUCKET")
	setString(&config.S3Region, "HUSHDROP_S3_REGION")
	setString(&config.S3BaseEndpoint, "HUSHDROP_S3_BASE_ENDPOINT")
	setInt(&config.MaxUploadSizeMB, "HUSHDROP_MAX_UPLOAD_SIZE_MB")
	setInt(&config.DefaultExpiryHours, "HUSHDROP_DEFAULT_EXPIRY_HOURS")
	setInt(&config.MaxExpiryHours, "HUSHDROP_MAX_EXPIRY_HOURS")
	setInt(&config.MaxPostEntries, "HUSHDROP_MAX_POST_ENTRIES")
	setDuration(&config.SweepInterval, "HUSHDROP_SWEEP_INTERVAL")
	setInt(&config.WipePeriodHours, "HUSHDROP_WIPE_PERIOD_HOURS")
	setBool(&config.WipeAlignMidnight, "HUSHDROP_WIPE_ALIGN_MIDNIGHT")
	setString(&config.AdminMessage, "HUSHDROP_ADMIN_MESSAGE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
