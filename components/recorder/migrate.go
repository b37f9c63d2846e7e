package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

// applyMigrations runs each .sql file in the root of fsys at most once, in
// name order. Only the "-- +migrate Up" section of each file is executed.
func applyMigrations(db *sql.DB, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		var found int
		err := db.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}

		_, err = tx.Exec(up)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}

		_, err = tx.Exec("INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)", name, time.Now().UTC().UnixMilli())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}

		log.Debugf("applied migration %s", name)
	}

	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"

	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]

	j := strings.Index(content, down)
	if j == -1 {
		return content
	}
	return content[:j]
}
