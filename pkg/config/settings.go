package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/dictionary"
)

// EnvPrefix is the prefix of every environment variable read.
const EnvPrefix = "SCRIPTURELENS"

// DictionarySettings override where the lexicons are downloaded from.
type DictionarySettings struct {
	GreekURL  string `mapstructure:"greek_url"`
	HebrewURL string `mapstructure:"hebrew_url"`
}

// Settings application settings
type Settings struct {
	DataDir    string   `mapstructure:"data_dir"`
	OutputDir  string   `mapstructure:"output_dir"`
	DBPatterns []string `mapstructure:"db_patterns"`
	// DBExclude drops discovered databases whose file name contains any of
	// these substrings.
	DBExclude []string `mapstructure:"db_exclude"`
	// Books is a book/chapter allow-list such as "43:1-3;45:1-8;40:5-7".
	Books                string             `mapstructure:"books"`
	Workers              int                `mapstructure:"workers"`
	DownloadDictionaries bool               `mapstructure:"download_dictionaries"`
	DownloadTimeout      time.Duration      `mapstructure:"download_timeout"`
	Dictionaries         DictionarySettings `mapstructure:"dictionaries"`
	SearchIndex          bool               `mapstructure:"search_index"`
}

// flagKeys maps setting keys to CLI flag names.
var flagKeys = map[string]string{
	"data_dir":                "data-dir",
	"output_dir":              "output-dir",
	"db_patterns":             "db-patterns",
	"db_exclude":              "db-exclude",
	"books":                   "books",
	"workers":                 "workers",
	"download_dictionaries":   "download-dictionaries",
	"download_timeout":        "download-timeout",
	"dictionaries.greek_url":  "greek-dictionary-url",
	"dictionaries.hebrew_url": "hebrew-dictionary-url",
	"search_index":            "search-index",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("data_dir", "data")
	v.SetDefault("output_dir", "app_data")
	v.SetDefault("db_patterns", []string{"clear-aligner-*.sqlite", "demo-*.sqlite"})
	v.SetDefault("db_exclude", []string{"-updated"})
	v.SetDefault("books", "")
	v.SetDefault("workers", 1)
	v.SetDefault("download_dictionaries", true)
	v.SetDefault("download_timeout", dictionary.DefaultTimeout)
	v.SetDefault("dictionaries.greek_url", dictionary.GreekURL)
	v.SetDefault("dictionaries.hebrew_url", dictionary.HebrewURL)
	v.SetDefault("search_index", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("dictionaries.greek_url", EnvPrefix+"_DICTIONARIES_GREEK_URL")
	_ = v.BindEnv("dictionaries.hebrew_url", EnvPrefix+"_DICTIONARIES_HEBREW_URL")

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // a missing .env is fine

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Env vars and .env values arrive as one comma-separated string.
	settings.DBPatterns = splitList(v.GetStringSlice("db_patterns"))
	settings.DBExclude = splitList(v.GetStringSlice("db_exclude"))
	settings.DataDir = expandHomeDir(settings.DataDir)
	settings.OutputDir = expandHomeDir(settings.OutputDir)
	settings.Books = strings.TrimSpace(settings.Books)

	return &settings, nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// ValidateSettings rejects settings a run cannot start with.
func ValidateSettings(s *Settings) error {
	if strings.TrimSpace(s.OutputDir) == "" {
		return errors.New("output-dir cannot be empty")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got: %d", s.Workers)
	}
	if s.DownloadDictionaries && s.DownloadTimeout <= 0 {
		return errors.New("download-timeout must be positive")
	}
	if _, err := s.BookFilter(); err != nil {
		return fmt.Errorf("books: %w", err)
	}
	return nil
}

// BookFilter parses Books.
func (s *Settings) BookFilter() (bible.BookFilter, error) {
	return bible.ParseBookFilter(s.Books)
}

// DictionarySources returns the lexicons to download.
func (s *Settings) DictionarySources() []dictionary.Source {
	return dictionary.DefaultSources(s.Dictionaries.GreekURL, s.Dictionaries.HebrewURL)
}

// DiscoverDatabases lists the project databases in DataDir matching
// DBPatterns, minus excluded names, sorted and without duplicates.
func (s *Settings) DiscoverDatabases() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range s.DBPatterns {
		matches, err := filepath.Glob(filepath.Join(s.DataDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || excluded(filepath.Base(m), s.DBExclude) {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func excluded(name string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(name, sub) {
			return true
		}
	}
	return false
}
