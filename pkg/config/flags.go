package config

import (
	"time"

	"github.com/spf13/pflag"
)

// RegisterFlags registers the CLI flags read by LoadSettingsWithFlags. Flag
// defaults are only used when neither env nor .env sets a value.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("data-dir", "data", "Directory holding the project databases")
	flags.String("output-dir", "app_data", "Export root")
	flags.StringSlice("db-patterns", []string{"clear-aligner-*.sqlite", "demo-*.sqlite"}, "Glob patterns of project databases inside data-dir")
	flags.StringSlice("db-exclude", []string{"-updated"}, "Skip databases whose file name contains any of these")
	flags.String("books", "", `Book/chapter allow-list for text export, e.g. "43:1-3;45:1-8;40:5-7" (empty = every book)`)
	flags.Int("workers", 1, "Number of projects exported concurrently")
	flags.Bool("download-dictionaries", true, "Download missing reference dictionaries")
	flags.Duration("download-timeout", 30*time.Second, "Timeout per dictionary download")
	flags.String("greek-dictionary-url", "", "Override the Greek dictionary URL")
	flags.String("hebrew-dictionary-url", "", "Override the Hebrew dictionary URL")
	flags.Bool("search-index", false, "Also build a lemma search index next to each concordance")
}
