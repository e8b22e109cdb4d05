// Package anndb is the annotation database: users, projects, videos,
// per-frame annotations and training runs, stored in SQLite via GORM.
package anndb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

type AnnDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create the annotation DB
func NewAnnDB(logger logs.Log, dbFilename string) (*AnnDB, error) {
	logger = logs.NewPrefixLogger(logger, "anndb")
	if dir := filepath.Dir(dbFilename); dir != "." {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, fmt.Errorf("Failed to create database directory '%v': %w", dir, err)
		}
	}
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open annotation database %v: %w", dbFilename, err)
	}
	return &AnnDB{
		Log: logger,
		DB:  db,
	}, nil
}
