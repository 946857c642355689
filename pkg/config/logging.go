package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: data_dir", "value", s.DataDir)
	logger.InfoContext(ctx, "Config: output_dir", "value", s.OutputDir)
	logger.InfoContext(ctx, "Config: db_patterns", "value", s.DBPatterns, "exclude", s.DBExclude)
	if s.Books != "" {
		logger.InfoContext(ctx, "Config: books", "value", s.Books)
	} else {
		logger.InfoContext(ctx, "Config: books", "value", "all")
	}
	logger.InfoContext(ctx, "Config: workers", "value", s.Workers)

	logger.InfoContext(ctx, "Config: download_dictionaries", "value", s.DownloadDictionaries)
	if s.DownloadDictionaries {
		logger.InfoContext(ctx, "Config: download_timeout", "value", s.DownloadTimeout)
		logger.DebugContext(ctx, "Config: dictionaries", "greek_url", s.Dictionaries.GreekURL, "hebrew_url", s.Dictionaries.HebrewURL)
	}
	logger.InfoContext(ctx, "Config: search_index", "value", s.SearchIndex)
}
