package config

import (
	"flag"
	"os"
	"strings"
	"time"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   database DSN (postgres:// or sqlite:)
//	-u string   blob upload directory
//	-k string   blob backend, "fs" or "s3"
//	-m int      upload size limit, megabytes
//	-x int      default expiry, hours
//	-y int      maximum expiry, hours
//	-n int      ledger entry cap per post
//	-i int      sweep interval, minutes
//	-w int      wipe period, hours (0 disables wiping)
//
// The function first filters os.Args to only the flags it recognizes,
// avoiding collisions with other components.
func parseFlags(config *Config) {
	args := filterArgs(os.Args[1:], []string{"-a", "-d", "-u", "-k", "-m", "-x", "-y", "-n", "-i", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Addr, "a", config.Addr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.UploadDir, "u", config.UploadDir, "blob upload directory")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend (fs or s3)")
	fs.IntVar(&config.MaxUploadSizeMB, "m", config.MaxUploadSizeMB, "upload size limit (in megabytes)")
	fs.IntVar(&config.DefaultExpiryHours, "x", config.DefaultExpiryHours, "default expiry (in hours)")
	fs.IntVar(&config.MaxExpiryHours, "y", config.MaxExpiryHours, "maximum expiry (in hours)")
	fs.IntVar(&config.MaxPostEntries, "n", config.MaxPostEntries, "ledger entry cap per post")

	sweepIntervalMinutes := fs.Int("i", int(config.SweepInterval.Minutes()), "sweep interval (in minutes)")

	fs.IntVar(&config.WipePeriodHours, "w", config.WipePeriodHours, "wipe period (in hours, 0 disables)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// The environment may carry a sub-minute interval; converting through
	// minutes would truncate it to zero, so the flag only wins when it was
	// actually passed.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			config.SweepInterval = time.Duration(*sweepIntervalMinutes) * time.Minute
		}
	})
}

// filterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values). Both "-f value" and "-f=value"
// forms are recognized.
func filterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := arg[:strings.Index(arg, "=")]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}
