package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"clipOntology/brain"
	"clipOntology/config"
	"clipOntology/core"
	"clipOntology/ontology"
)

const (
	ontologyFileName = "master_ontology.json"
	brainFileName    = "script_clip_brain.json"
)

// StateStore persists the master ontology and recipe index as two structured
// documents. Saves must be atomic per merge so a crash mid-write cannot
// leave a partially updated ontology.
type StateStore interface {
	LoadOntology() (*ontology.MasterOntology, error)
	LoadBrain() (*brain.RecipeIndex, error)
	SaveState(m *ontology.MasterOntology, r *brain.RecipeIndex) error
}

// NewStateStore selects the backend from the STATE_STORE env var
// ("postgres" or default "file"), falling back to the file store with a
// printed warning when Postgres cannot be reached.
func NewStateStore() StateStore {
	kind := strings.ToLower(strings.TrimSpace(os.Getenv("STATE_STORE")))
	if kind == "postgres" {
		s, err := newPgStateStore()
		if err != nil {
			fmt.Printf("Warning: Failed to initialize Postgres state store (%v), falling back to file store\n", err)
			return NewFileStateStore(core.DataRoot())
		}
		return s
	}
	return NewFileStateStore(core.DataRoot())
}

// ---------------- File implementation (default) ----------------

// FileStateStore keeps both documents at a fixed location under dir and
// writes them temp-then-rename.
type FileStateStore struct {
	dir string
}

func NewFileStateStore(dir string) *FileStateStore {
	return &FileStateStore{dir: dir}
}

func (s *FileStateStore) OntologyPath() string {
	return filepath.Join(s.dir, ontologyFileName)
}

func (s *FileStateStore) BrainPath() string {
	return filepath.Join(s.dir, brainFileName)
}

func (s *FileStateStore) LoadOntology() (*ontology.MasterOntology, error) {
	data, err := os.ReadFile(s.OntologyPath())
	if os.IsNotExist(err) {
		return ontology.NewMasterOntology(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ontology state: %w", err)
	}
	return ontology.DeserializeMasterOntology(data)
}

func (s *FileStateStore) LoadBrain() (*brain.RecipeIndex, error) {
	data, err := os.ReadFile(s.BrainPath())
	if os.IsNotExist(err) {
		return brain.NewRecipeIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recipe index state: %w", err)
	}
	return brain.DeserializeRecipeIndex(data)
}

func (s *FileStateStore) SaveState(m *ontology.MasterOntology, r *brain.RecipeIndex) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	ontologyDoc, err := m.Serialize()
	if err != nil {
		return fmt.Errorf("serialize ontology: %w", err)
	}
	brainDoc, err := r.Serialize()
	if err != nil {
		return fmt.Errorf("serialize recipe index: %w", err)
	}
	if err := writeFileAtomic(s.OntologyPath(), ontologyDoc); err != nil {
		return err
	}
	return writeFileAtomic(s.BrainPath(), brainDoc)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ---------------- Postgres implementation ----------------

// PgStateStore keeps both documents as jsonb rows keyed by name and updates
// them in one transaction per merge.
type PgStateStore struct {
	conn *pgx.Conn
}

func newPgStateStore() (*PgStateStore, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgStateStore{conn: conn}
	if err := s.ensureTable(); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgStateStore) ensureTable() error {
	ctx := context.Background()
	query := `
		CREATE TABLE IF NOT EXISTS ontology_state (
			name VARCHAR(64) PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ontology_state table: %w", err)
	}
	return nil
}

func (s *PgStateStore) loadDoc(name string) ([]byte, error) {
	ctx := context.Background()
	var doc []byte
	err := s.conn.QueryRow(ctx, "SELECT doc FROM ontology_state WHERE name = $1", name).Scan(&doc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state doc %s: %w", name, err)
	}
	return doc, nil
}

func (s *PgStateStore) LoadOntology() (*ontology.MasterOntology, error) {
	doc, err := s.loadDoc("master_ontology")
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return ontology.NewMasterOntology(), nil
	}
	return ontology.DeserializeMasterOntology(doc)
}

func (s *PgStateStore) LoadBrain() (*brain.RecipeIndex, error) {
	doc, err := s.loadDoc("script_clip_brain")
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return brain.NewRecipeIndex(), nil
	}
	return brain.DeserializeRecipeIndex(doc)
}

func (s *PgStateStore) SaveState(m *ontology.MasterOntology, r *brain.RecipeIndex) error {
	ontologyDoc, err := m.Serialize()
	if err != nil {
		return fmt.Errorf("serialize ontology: %w", err)
	}
	brainDoc, err := r.Serialize()
	if err != nil {
		return fmt.Errorf("serialize recipe index: %w", err)
	}

	ctx := context.Background()
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin state transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO ontology_state (name, doc, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, upsert, "master_ontology", ontologyDoc); err != nil {
		return fmt.Errorf("upsert ontology doc: %w", err)
	}
	if _, err := tx.Exec(ctx, upsert, "script_clip_brain", brainDoc); err != nil {
		return fmt.Errorf("upsert recipe index doc: %w", err)
	}
	return tx.Commit(ctx)
}
