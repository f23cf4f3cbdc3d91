package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/ruletree/internal/codec"
	"github.com/solatis/ruletree/internal/core/db"
	"github.com/solatis/ruletree/internal/subject"
)

// openDatabase loads configuration, installs the logger and opens the
// configured database.
func openDatabase(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions) (*sqlx.DB, error) {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := setupLogger(cmd, cfg); err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// formatOf picks a tree format from a file extension. Unknown extensions
// fall back to content detection.
func formatOf(path string, data []byte) codec.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return codec.FormatXML
	case ".yaml", ".yml":
		return codec.FormatYAML
	case ".json":
		return codec.FormatJSON
	default:
		return codec.Detect(data)
	}
}

// readTree reads a condition tree file and returns it in a format the rule
// owner decodes directly. YAML is converted to JSON.
func readTree(c *codec.Codec, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rule: %w", err)
	}
	if formatOf(path, data) == codec.FormatYAML {
		data, err = c.Convert(data, codec.FormatYAML, codec.FormatJSON)
		if err != nil {
			return "", err
		}
	}
	return string(data), nil
}

// readSubject loads a subject from a JSON or YAML file.
func readSubject(path string) (*subject.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subject: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return subject.FromYAML(data)
	default:
		return subject.FromJSON(data)
	}
}
