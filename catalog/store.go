/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
	"go.uber.org/zap"
)

// Store persists normalized records. Each record is independent; no
// batching or transaction spanning several records is assumed.
type Store interface {
	AddRecord(ctx context.Context, rec *Record) error
}

//go:embed schema.sql
var createDB string

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	id  uuid.UUID
	log *zap.Logger

	// If true, attachment content is stored in the database too.
	StoreContent bool
}

// OpenSQLiteStore opens (creating if needed) the database at dbPath.
func OpenSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{db: db, log: Log.Named("store")}

	if err := store.provision(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version() AS version").Scan(&version); err == nil {
		store.log.Info("using sqlite",
			zap.String("version", version),
			zap.String("catalog_id", store.id.String()))
	}

	return store, nil
}

func (s *SQLiteStore) provision(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createDB); err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}

	// assign this catalog a persistent UUID the first time it is created
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO catalog (key, value) VALUES (?, ?), (?, ?)`,
		"id", uuid.New().String(),
		"version", 1,
	)
	if err != nil {
		return fmt.Errorf("persisting catalog UUID and version: %w", err)
	}

	var idStr string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM catalog WHERE key=? LIMIT 1`, "id").Scan(&idStr); err != nil {
		return fmt.Errorf("selecting catalog UUID: %w", err)
	}
	s.id, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("malformed UUID %s: %w", idStr, err)
	}
	return nil
}

// ID returns the persistent identifier of the catalog.
func (s *SQLiteStore) ID() uuid.UUID { return s.id }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// AddRecord inserts rec with its attachment and tags. A record without an
// ID is assigned a new random one.
func (s *SQLiteStore) AddRecord(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var lat, lon, alt *float64
	if rec.Location != nil {
		lat, lon, alt = &rec.Location.Latitude, &rec.Location.Longitude, rec.Location.Altitude
	}
	var extService, extID *string
	if rec.ExternalRef != nil {
		extService, extID = &rec.ExternalRef.Service, &rec.ExternalRef.ID
	}
	var activityOffset *int
	if rec.Activity != nil {
		_, off := rec.Activity.Zone()
		activityOffset = &off
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO records
		(id, title, notes, created, activity, activity_offset, latitude, longitude, altitude, external_service, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Title, nullString(rec.Notes), unixMilli(rec.Created), unixMilli(rec.Activity), activityOffset,
		lat, lon, alt, extService, extID)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}

	att := rec.Attachment
	var orientation *int
	if att.Orientation != nil {
		o := int(*att.Orientation)
		orientation = &o
	}
	var width, height, duration *int
	if att.Dimensions != nil {
		width, height = &att.Dimensions.Width, &att.Dimensions.Height
	}
	if att.Duration != nil {
		d := int(*att.Duration)
		duration = &d
	}
	var content []byte
	if s.StoreContent {
		content = att.Content
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO attachments
		(record_id, filename, mime_type, size, hash, created, modified, orientation, width, height, duration, thumbhash, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), att.Filename, att.MIMEType, att.Size, att.Hash,
		unixMilli(&att.Created), unixMilli(&att.Modified),
		orientation, width, height, duration, att.Thumbhash, content)
	if err != nil {
		return fmt.Errorf("inserting attachment: %w", err)
	}

	for _, tag := range rec.Tags {
		tagID, err := s.tagID(ctx, tx, tag)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO record_tags (record_id, tag_id) VALUES (?, ?)`,
			rec.ID.String(), tagID)
		if err != nil {
			return fmt.Errorf("linking tag %q: %w", tag.Name, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) tagID(ctx context.Context, tx *sql.Tx, tag Tag) (int64, error) {
	norm := NormalizeTagName(tag.Name)
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE normalized=? AND kind=? LIMIT 1`, norm, int(tag.Kind)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up tag %q: %w", tag.Name, err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO tags (name, normalized, kind) VALUES (?, ?, ?)`,
		tag.Name, norm, int(tag.Kind))
	if err != nil {
		return 0, fmt.Errorf("inserting tag %q: %w", tag.Name, err)
	}
	return res.LastInsertId()
}

// RecordCount returns how many records are stored.
func (s *SQLiteStore) RecordCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count() FROM records`).Scan(&n)
	return n, err
}

// TagNames returns the tag names linked to the record with the given ID.
func (s *SQLiteStore) TagNames(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags.name FROM record_tags
		JOIN tags ON tags.id = record_tags.tag_id
		WHERE record_tags.record_id=? ORDER BY tags.id`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func unixMilli(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
