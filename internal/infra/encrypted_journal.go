package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	journalDBName = "journal.db"

	// DefaultJournalRetention caps the number of stored transitions.
	DefaultJournalRetention = 10000
)

// EncryptedJournal implements domain.TransitionJournal using a SQLCipher
// encrypted SQLite database. Capture history says when the user was
// recorded, so it is kept encrypted at rest.
type EncryptedJournal struct {
	db        *sql.DB
	dbPath    string
	retention int
}

// NewEncryptedJournal opens (or creates) the journal database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedJournal(dataDir string, key []byte) (*EncryptedJournal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, journalDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	j := &EncryptedJournal{
		db:        db,
		dbPath:    dbPath,
		retention: DefaultJournalRetention,
	}

	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return j, nil
}

// SetRetention changes how many transitions are kept. Zero disables pruning.
func (j *EncryptedJournal) SetRetention(n int) {
	j.retention = n
}

func (j *EncryptedJournal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		event TEXT NOT NULL,
		phase TEXT NOT NULL,
		capture TEXT NOT NULL,
		requests TEXT NOT NULL DEFAULT '[]',
		degraded INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records a transition and prunes entries beyond the retention cap.
func (j *EncryptedJournal) Append(t domain.Transition) error {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	requests := t.Requests
	if requests == nil {
		requests = []domain.ActionRequest{}
	}
	encoded, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("failed to encode requests: %w", err)
	}

	_, err = j.db.Exec(`
		INSERT INTO transitions (at, event, phase, capture, requests, degraded)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.At.UnixNano(), string(t.Event), string(t.Phase), string(t.Capture), string(encoded), t.Degraded,
	)
	if err != nil {
		return err
	}

	if j.retention > 0 {
		_, err = j.db.Exec(`
			DELETE FROM transitions
			WHERE id <= (SELECT MAX(id) FROM transitions) - ?`, j.retention)
	}
	return err
}

// Recent returns up to limit transitions, newest first.
func (j *EncryptedJournal) Recent(limit int) ([]domain.Transition, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.Query(`
		SELECT id, at, event, phase, capture, requests, degraded
		FROM transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var (
			t        domain.Transition
			at       int64
			event    string
			phase    string
			capture  string
			requests string
		)
		if err := rows.Scan(&t.ID, &at, &event, &phase, &capture, &requests, &t.Degraded); err != nil {
			return nil, err
		}
		t.At = time.Unix(0, at)
		t.Event = domain.EventKind(event)
		t.Phase = domain.LifecyclePhase(phase)
		t.Capture = domain.CaptureStatus(capture)
		if err := json.Unmarshal([]byte(requests), &t.Requests); err != nil {
			return nil, fmt.Errorf("transition %d: corrupt requests: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (j *EncryptedJournal) Path() string {
	return j.dbPath
}

// Close releases the database connection.
func (j *EncryptedJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// OpenJournal ensures an encryption key exists in dataDir and opens the
// journal with it.
func OpenJournal(dataDir string) (*EncryptedJournal, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("journal key: %w", err)
	}
	return NewEncryptedJournal(dataDir, key)
}

// Ensure EncryptedJournal implements domain.TransitionJournal.
var _ domain.TransitionJournal = (*EncryptedJournal)(nil)
