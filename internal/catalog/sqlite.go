package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"intentcore/internal/logging"
)

// SQLiteCatalog stores canonical intents and the staging corpus in SQLite.
// Embeddings are JSON-encoded into a text column; at catalog scale (tens to
// low hundreds of intents) a linear decode-and-scan is the deliberate choice
// over an ANN extension.
type SQLiteCatalog struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSQLiteCatalog opens (or creates) the catalog database at the given path.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteCatalog")
	defer timer.Stop()

	logging.Store("Opening catalog at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	c := &SQLiteCatalog{db: db, dbPath: path}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

func (c *SQLiteCatalog) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS canonical_intents (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		subcategory TEXT,
		description TEXT,
		keywords TEXT,
		actionable INTEGER NOT NULL DEFAULT 0,
		approved INTEGER NOT NULL DEFAULT 0,
		embedding TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS staging_documents (
		id TEXT PRIMARY KEY,
		subject TEXT,
		description TEXT,
		resolution TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_intents_approved ON canonical_intents(approved);
	`
	_, err := c.db.Exec(schema)
	return err
}

// UpsertIntent inserts or replaces a canonical intent. A nil embedding is
// stored as NULL.
func (c *SQLiteCatalog) UpsertIntent(ctx context.Context, intent CanonicalIntent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var embeddingJSON interface{}
	if intent.Embedding != nil {
		data, err := json.Marshal(intent.Embedding)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		embeddingJSON = string(data)
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO canonical_intents
		 (id, category, subcategory, description, keywords, actionable, approved, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.ID, intent.Category, intent.Subcategory, intent.Description,
		intent.Keywords, boolToInt(intent.Actionable), boolToInt(intent.Approved), embeddingJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert intent %s: %w", intent.ID, err)
	}
	logging.StoreDebug("Upserted intent %s (approved=%v, embedded=%v)", intent.ID, intent.Approved, intent.Embedding != nil)
	return nil
}

// ListApprovedIntents returns all approved canonical intents. Intents whose
// embedding column fails to decode are returned with a nil embedding; the
// index layer decides whether that is fatal.
func (c *SQLiteCatalog) ListApprovedIntents(ctx context.Context) ([]CanonicalIntent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, category, subcategory, description, keywords, actionable, embedding
		 FROM canonical_intents WHERE approved = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved intents: %w", err)
	}
	defer rows.Close()

	var intents []CanonicalIntent
	for rows.Next() {
		var intent CanonicalIntent
		var subcategory, description, keywords, embeddingJSON sql.NullString
		var actionable int

		if err := rows.Scan(&intent.ID, &intent.Category, &subcategory, &description,
			&keywords, &actionable, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan intent row: %w", err)
		}

		intent.Subcategory = subcategory.String
		intent.Description = description.String
		intent.Keywords = keywords.String
		intent.Actionable = actionable != 0
		intent.Approved = true

		if embeddingJSON.Valid && embeddingJSON.String != "" {
			var vec []float32
			if err := json.Unmarshal([]byte(embeddingJSON.String), &vec); err != nil {
				logging.Get(logging.CategoryStore).Warn("Intent %s has undecodable embedding: %v", intent.ID, err)
			} else {
				intent.Embedding = vec
			}
		}

		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logging.StoreDebug("Listed %d approved intents", len(intents))
	return intents, nil
}

// AddStagingDocument inserts a ticket into the staging corpus.
func (c *SQLiteCatalog) AddStagingDocument(ctx context.Context, doc StagingDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO staging_documents (id, subject, description, resolution)
		 VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Subject, doc.Description, doc.Resolution,
	)
	if err != nil {
		return fmt.Errorf("failed to insert staging document %s: %w", doc.ID, err)
	}
	return nil
}

// ListStagingDocuments returns the full staging corpus in insertion id order.
func (c *SQLiteCatalog) ListStagingDocuments(ctx context.Context) ([]StagingDocument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, subject, description, resolution FROM staging_documents ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query staging documents: %w", err)
	}
	defer rows.Close()

	var docs []StagingDocument
	for rows.Next() {
		var doc StagingDocument
		var subject, description, resolution sql.NullString
		if err := rows.Scan(&doc.ID, &subject, &description, &resolution); err != nil {
			return nil, fmt.Errorf("failed to scan staging row: %w", err)
		}
		doc.Subject = subject.String
		doc.Description = description.String
		doc.Resolution = resolution.String
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}

// Close closes the underlying database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
