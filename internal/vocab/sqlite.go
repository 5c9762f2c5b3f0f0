package vocab

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/normanking/reavoice/pkg/types"
)

//go:embed migrations/001_vocabulary.sql
var vocabularySchema string

// SQLiteStore is the canonical vocabulary store: a single SQLite file the
// UI shell and the CLI both edit. GetAll reads fresh on every call, so
// external edits surface without a matcher restart.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the vocabulary database at dbPath
// and runs migrations. When seed is true and the database is empty, the
// built-in starter vocabulary is inserted.
func OpenSQLiteStore(dbPath string, seed bool) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create vocabulary dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary db: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db}

	if err := store.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}

	if _, err := db.Exec(vocabularySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate vocabulary schema: %w", err)
	}

	if seed {
		if err := store.seedIfEmpty(); err != nil {
			log.Warn().Err(err).Msg("vocab: seeding failed, continuing with empty vocabulary")
		}
	}

	return store, nil
}

// initPragmas configures SQLite for safe concurrent reads.
func (s *SQLiteStore) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetAll returns every vocabulary item.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]types.VocabularyItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phrase, tags, intent_type, sentiment, category,
		       action_mapping, clarification_rule, created_at, updated_at
		FROM vocabulary
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	var items []types.VocabularyItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns one item by ID, or sql.ErrNoRows.
func (s *SQLiteStore) Get(ctx context.Context, id string) (types.VocabularyItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phrase, tags, intent_type, sentiment, category,
		       action_mapping, clarification_rule, created_at, updated_at
		FROM vocabulary WHERE id = ?`, id)
	return scanItem(row)
}

// Add inserts a new item, assigning an ID when absent, and returns it.
func (s *SQLiteStore) Add(ctx context.Context, item types.VocabularyItem) (types.VocabularyItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.IntentType == "" {
		item.IntentType = types.IntentAction
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	tags, mapping, err := encodeItem(item)
	if err != nil {
		return item, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vocabulary
			(id, phrase, tags, intent_type, sentiment, category,
			 action_mapping, clarification_rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Phrase, tags, string(item.IntentType), item.Sentiment,
		item.Category, mapping, item.ClarificationRule, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return item, fmt.Errorf("insert vocabulary item: %w", err)
	}
	return item, nil
}

// Update rewrites an existing item.
func (s *SQLiteStore) Update(ctx context.Context, item types.VocabularyItem) error {
	item.UpdatedAt = time.Now().UTC()

	tags, mapping, err := encodeItem(item)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE vocabulary SET
			phrase = ?, tags = ?, intent_type = ?, sentiment = ?,
			category = ?, action_mapping = ?, clarification_rule = ?,
			updated_at = ?
		WHERE id = ?`,
		item.Phrase, tags, string(item.IntentType), item.Sentiment,
		item.Category, mapping, item.ClarificationRule, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("update vocabulary item: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("vocabulary item %s not found", item.ID)
	}
	return nil
}

// Delete removes an item by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vocabulary WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vocabulary item: %w", err)
	}
	return nil
}

// Count returns the number of stored items.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vocabulary`).Scan(&n)
	return n, err
}

// seedIfEmpty loads the starter vocabulary into a fresh database.
func (s *SQLiteStore) seedIfEmpty() error {
	n, err := s.Count(context.Background())
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	for _, item := range seedVocabulary() {
		if _, err := s.Add(context.Background(), item); err != nil {
			return err
		}
	}
	log.Info().Int("items", len(seedVocabulary())).Msg("vocab: seeded starter vocabulary")
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanItem.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (types.VocabularyItem, error) {
	var (
		item    types.VocabularyItem
		intent  string
		tags    string
		mapping sql.NullString
	)

	err := row.Scan(&item.ID, &item.Phrase, &tags, &intent, &item.Sentiment,
		&item.Category, &mapping, &item.ClarificationRule,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return item, err
	}

	item.IntentType = types.IntentType(intent)
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		// Malformed tags read as none rather than failing the whole load.
		item.Tags = nil
	}
	if mapping.Valid && mapping.String != "" {
		var am types.ActionMapping
		if err := json.Unmarshal([]byte(mapping.String), &am); err == nil {
			item.ActionMapping = &am
		}
	}
	return item, nil
}

func encodeItem(item types.VocabularyItem) (tags string, mapping sql.NullString, err error) {
	tagBytes, err := json.Marshal(item.Tags)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("marshal tags: %w", err)
	}
	if item.Tags == nil {
		tagBytes = []byte("[]")
	}

	if item.ActionMapping != nil {
		mapBytes, err := json.Marshal(item.ActionMapping)
		if err != nil {
			return "", sql.NullString{}, fmt.Errorf("marshal action mapping: %w", err)
		}
		mapping = sql.NullString{String: string(mapBytes), Valid: true}
	}

	return string(tagBytes), mapping, nil
}
