package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Migration overview:
//
// 1. preMigrate: if the database has no schema yet, apply LATEST.sql for the driver.
// 2. Migrate (demo mode): load the demo warehouse from seed/{driver}/*.sql when it is empty.
//
// LATEST.sql is the complete schema. Files are embedded at build time.

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"

	// Mode constants for profile mode.
	modeDemo = "demo"
)

// Migrate creates the schema on a fresh database and seeds demo data in demo mode.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.preMigrate(ctx); err != nil {
		return errors.Wrap(err, "failed to pre-migrate")
	}

	if s.profile.Mode == modeDemo {
		if err := s.Seed(ctx); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

// preMigrate checks if the database is initialized and applies the latest schema if not.
func (s *Store) preMigrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	filePath := s.getMigrationBasePath() + LatestSchemaFileName
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Errorf("failed to read latest schema file: %s", err)
	}
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	slog.Info("initializing new database with latest schema", slog.String("file", filePath))
	if err := s.execute(ctx, tx, string(bytes)); err != nil {
		return errors.Errorf("failed to execute SQL file %s, err %s", filePath, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	slog.Info("database initialized successfully", slog.String("driver", s.profile.Driver))
	return nil
}

func (s *Store) getMigrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

func (s *Store) getSeedBasePath() string {
	return fmt.Sprintf("seed/%s/", s.profile.Driver)
}

// Seed loads the demo warehouse. It is a no-op when products already exist.
func (s *Store) Seed(ctx context.Context) error {
	var count int64
	if err := s.driver.GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return errors.Wrap(err, "failed to count products")
	}
	if count > 0 {
		slog.Debug("warehouse already seeded", slog.Int64("products", count))
		return nil
	}

	filenames, err := fs.Glob(seedFS, fmt.Sprintf("%s*.sql", s.getSeedBasePath()))
	if err != nil {
		return errors.Wrap(err, "failed to read seed files")
	}

	// Seed files are applied in name order.
	sort.Strings(filenames)
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	for _, filename := range filenames {
		bytes, err := seedFS.ReadFile(filename)
		if err != nil {
			return errors.Wrapf(err, "failed to read seed file, filename=%s", filename)
		}
		if err := s.execute(ctx, tx, string(bytes)); err != nil {
			return errors.Wrapf(err, "seed error: %s", filename)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit seed transaction")
	}
	slog.Info("demo warehouse seeded", slog.Int("files", len(filenames)))
	return nil
}

// execute executes a SQL statement within a transaction context.
// For PostgreSQL, it splits multi-statement SQL and executes each separately.
// It returns an error if the execution fails.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, stmt string) error {
	// PostgreSQL doesn't support multiple statements in a single ExecContext call.
	// We need to split and execute each statement separately.
	if s.profile.Driver == "postgres" {
		return s.executeMultiStmt(ctx, tx, stmt)
	}
	// For other drivers (SQLite), try single execution first
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to execute statement")
	}
	return nil
}

// executeMultiStmt splits SQL into individual statements and executes them.
// It handles PostgreSQL's requirement for separate execution of each statement.
func (s *Store) executeMultiStmt(ctx context.Context, tx *sql.Tx, sql string) error {
	statements := s.splitSQL(sql)
	for i, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute statement %d: %s", i+1, stmt)
		}
	}
	return nil
}

// splitSQL splits a multi-statement SQL string into individual statements.
// It handles:
// - Dollar-quoted strings ($$...$$) for PostgreSQL function bodies
// - Single-quoted strings ('...')
// - SQL comments (-- ... and /* ... */)
// - Preserves function definitions with $$ delimiters
func (s *Store) splitSQL(sql string) []string {
	var statements []string
	var currentStmt strings.Builder
	lines := strings.Split(sql, "\n")

	inDollarQuote := false
	dollarQuoteTag := ""
	inSingleQuote := false
	inMultiLineComment := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Skip pure comment lines
		if strings.HasPrefix(trimmed, "--") && !inDollarQuote && !inSingleQuote && !inMultiLineComment {
			continue
		}

		// Skip empty lines outside of dollar quotes
		if trimmed == "" && !inDollarQuote {
			if currentStmt.Len() > 0 {
				currentStmt.WriteString("\n")
			}
			continue
		}

		// Process each character to track contexts
		i := 0
		for i < len(line) {
			ch := line[i]

			// Check for dollar quote start/end
			if !inSingleQuote && !inMultiLineComment {
				if ch == '$' {
					// Try to match dollar quote tag
					tagEnd := i + 1
					for tagEnd < len(line) && line[tagEnd] != '$' {
						tagEnd++
					}
					if tagEnd < len(line) && line[tagEnd] == '$' {
						tag := line[i : tagEnd+1]
						if inDollarQuote && tag == dollarQuoteTag {
							// Closing dollar quote
							inDollarQuote = false
							dollarQuoteTag = ""
							currentStmt.WriteString(tag)
							i = tagEnd + 1
							continue
						} else if !inDollarQuote {
							// Opening dollar quote
							inDollarQuote = true
							dollarQuoteTag = tag
							currentStmt.WriteString(tag)
							i = tagEnd + 1
							continue
						}
					}
				}
			}

			// Check for single quote
			if ch == '\'' && !inDollarQuote && !inMultiLineComment {
				inSingleQuote = !inSingleQuote
				currentStmt.WriteByte(ch)
				i++
				continue
			}

			// Check for multi-line comment start
			if !inSingleQuote && !inDollarQuote && i+1 < len(line) && line[i:i+2] == "/*" {
				inMultiLineComment = true
				i += 2
				continue
			}

			// Check for multi-line comment end
			if inMultiLineComment && i+1 < len(line) && line[i:i+2] == "*/" {
				inMultiLineComment = false
				i += 2
				continue
			}

			// Skip inline single-line comments
			if !inSingleQuote && !inDollarQuote && !inMultiLineComment && ch == '-' && i+1 < len(line) && line[i+1] == '-' {
				break // Skip rest of line
			}

			// Check for semicolon (statement separator)
			if ch == ';' && !inSingleQuote && !inDollarQuote && !inMultiLineComment {
				currentStmt.WriteByte(ch)
				stmt := strings.TrimSpace(currentStmt.String())
				if stmt != "" {
					statements = append(statements, stmt)
				}
				currentStmt.Reset()
				i++
				// Skip remaining whitespace on this line
				for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
					i++
				}
				continue
			}

			currentStmt.WriteByte(ch)
			i++
		}

		if currentStmt.Len() > 0 {
			currentStmt.WriteString("\n")
		}
	}

	// Add remaining statement (might not end with semicolon)
	if currentStmt.Len() > 0 {
		stmt := strings.TrimSpace(currentStmt.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}
