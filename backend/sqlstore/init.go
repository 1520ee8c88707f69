////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package sqlstore is a backend.Backend on an SQLite database. It is the
// reference backing store served by the CLI and used in tests.
package sqlstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements backend.Backend with an underlying DB.
type Store struct {
	db *gorm.DB
}

// NewStore opens the database at the path, creating the schema if needed. An
// empty path opens a private in-memory database.
func NewStore(dbFilePath string) (*Store, error) {
	if len(dbFilePath) == 0 {
		dbFilePath = fmt.Sprintf(temporaryDbPath, uuid.NewString())
		jww.WARN.Printf("[SQL] No database file path specified! " +
			"Using temporary in-memory database")
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.New(jww.TRACE, logger.Config{LogLevel: logger.Info}),
	})
	if err != nil {
		return nil, errors.Errorf("Unable to initialize database backend: %+v", err)
	}

	// Foreign keys are disabled in SQLite by default
	if err = db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	// Write Ahead Logging allows multiple DB connections
	if err = db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return nil, err
	}

	sqlDb, err := db.DB()
	if err != nil {
		return nil, errors.Errorf(
			"Unable to configure database connection pool: %+v", err)
	}
	sqlDb.SetMaxIdleConns(5)
	sqlDb.SetMaxOpenConns(10)
	sqlDb.SetConnMaxIdleTime(5 * time.Minute)
	sqlDb.SetConnMaxLifetime(10 * time.Minute)

	// WARNING: Order is important. Do not change without database testing
	err = db.AutoMigrate(&Server{}, &Channel{}, &Member{}, &Profile{})
	if err != nil {
		return nil, err
	}

	jww.INFO.Println("[SQL] Database backend initialized successfully!")
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
