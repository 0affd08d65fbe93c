package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	_ "github.com/marcboeker/go-duckdb"
)

type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the index at dbPath. An empty path opens an
// in-memory database.
func New(dbPath string) (*DB, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_page_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_entry_id START 1;`,

		`CREATE TABLE IF NOT EXISTS pages (
			id INTEGER PRIMARY KEY,
			crate TEXT NOT NULL,
			version TEXT NOT NULL,
			path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			fetched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(crate, version, path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_crate ON pages (crate)`,

		// (page_id, kind, name) is unique through sidebar.Builder. DuckDB
		// checks unique indexes eagerly, so a constraint here would reject
		// the delete-then-insert in ReplaceEntries.
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY,
			page_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			kind_position INTEGER NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_page ON entries (page_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_name ON entries (name)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Page operations ---

type Page struct {
	ID          int
	Crate       string
	Version     string
	Path        string
	ContentHash string
	FetchedAt   time.Time
	LastUsedAt  time.Time
}

const pageColumns = `id, crate, version, path, content_hash, fetched_at, last_used_at`

func scanPage(row interface{ Scan(...any) error }) (*Page, error) {
	var p Page
	if err := row.Scan(&p.ID, &p.Crate, &p.Version, &p.Path, &p.ContentHash, &p.FetchedAt, &p.LastUsedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPage records a fetched page, refreshing its content hash and fetch
// time if it already exists.
func (db *DB) UpsertPage(crate, version, path, contentHash string) (*Page, error) {
	existing, err := db.GetPage(crate, version, path)
	if err != nil {
		return nil, fmt.Errorf("checking page: %w", err)
	}
	if existing != nil {
		_, err := db.conn.Exec(
			`UPDATE pages SET content_hash = ?, fetched_at = CURRENT_TIMESTAMP, last_used_at = CURRENT_TIMESTAMP WHERE id = ?`,
			contentHash, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating page: %w", err)
		}
		return db.GetPage(crate, version, path)
	}

	var id int
	err = db.conn.QueryRow(
		`INSERT INTO pages (id, crate, version, path, content_hash) VALUES (nextval('seq_page_id'), ?, ?, ?, ?) RETURNING id`,
		crate, version, path, contentHash,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting page: %w", err)
	}

	now := time.Now()
	return &Page{ID: id, Crate: crate, Version: version, Path: path, ContentHash: contentHash, FetchedAt: now, LastUsedAt: now}, nil
}

func (db *DB) GetPage(crate, version, path string) (*Page, error) {
	p, err := scanPage(db.conn.QueryRow(
		`SELECT `+pageColumns+` FROM pages WHERE crate = ? AND version = ? AND path = ?`,
		crate, version, path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetLatestPage returns the most recently fetched version of a page.
func (db *DB) GetLatestPage(crate, path string) (*Page, error) {
	p, err := scanPage(db.conn.QueryRow(
		`SELECT `+pageColumns+` FROM pages WHERE crate = ? AND path = ?
		 ORDER BY fetched_at DESC, id DESC LIMIT 1`,
		crate, path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (db *DB) ListPages() ([]Page, error) {
	rows, err := db.conn.Query(`SELECT ` + pageColumns + ` FROM pages ORDER BY crate, version, path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

func (db *DB) TouchPage(pageID int) error {
	_, err := db.conn.Exec(`UPDATE pages SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?`, pageID)
	return err
}

// DeletePage removes a page and its entries.
func (db *DB) DeletePage(pageID int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM pages WHERE id = ?`, pageID); err != nil {
		return fmt.Errorf("deleting page: %w", err)
	}
	return tx.Commit()
}

// --- Entry operations ---

// ReplaceEntries swaps the page's indexed entries for items. Tables are
// regenerated wholesale, never patched.
func (db *DB) ReplaceEntries(pageID int, items *sidebar.Items) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO entries (id, page_id, kind, kind_position, position, name, description)
		 VALUES (nextval('seq_entry_id'), ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	kindPos := 0
	for kind, entries := range items.All() {
		for pos, e := range entries {
			if _, err := stmt.Exec(pageID, string(kind), kindPos, pos, e.Name, e.Description); err != nil {
				return fmt.Errorf("inserting entry %s %q: %w", kind, e.Name, err)
			}
		}
		kindPos++
	}

	return tx.Commit()
}

func (db *DB) CountEntries(pageID int) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM entries WHERE page_id = ?`, pageID).Scan(&n)
	return n, err
}

// LoadItems rebuilds a page's table from the index in its original order.
// Kinds with no entries leave no rows and are not restored.
func (db *DB) LoadItems(pageID int) (*sidebar.Items, error) {
	rows, err := db.conn.Query(
		`SELECT kind, name, description FROM entries
		 WHERE page_id = ? ORDER BY kind_position, position`, pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	defer rows.Close()

	b := sidebar.NewBuilder()
	for rows.Next() {
		var kind, name, desc string
		if err := rows.Scan(&kind, &name, &desc); err != nil {
			return nil, err
		}
		b.Add(sidebar.Kind(kind), name, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Build()
}

// EntryHit is an indexed entry together with the page that lists it.
type EntryHit struct {
	PageID      int
	Crate       string
	Version     string
	Path        string
	Kind        sidebar.Kind
	Name        string
	Description string
}

// FindEntries returns entries whose name or description contains query,
// case-insensitively, best name matches first. Empty crates or kinds do not
// filter.
func (db *DB) FindEntries(query string, crates []string, kinds []sidebar.Kind, limit int) ([]EntryHit, error) {
	pattern := "%" + escapeLike(query) + "%"
	conds := []string{`(e.name ILIKE ? ESCAPE '\' OR e.description ILIKE ? ESCAPE '\')`}
	params := []interface{}{pattern, pattern}

	if len(crates) > 0 {
		conds = append(conds, fmt.Sprintf("p.crate IN (%s)", placeholders(len(crates))))
		for _, c := range crates {
			params = append(params, c)
		}
	}
	if len(kinds) > 0 {
		conds = append(conds, fmt.Sprintf("e.kind IN (%s)", placeholders(len(kinds))))
		for _, k := range kinds {
			params = append(params, string(k))
		}
	}

	// Closer name matches sort first so a limit never cuts them off.
	q := `SELECT p.id, p.crate, p.version, p.path, e.kind, e.name, e.description
		FROM entries e JOIN pages p ON p.id = e.page_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY CASE
			WHEN e.name = ? THEN 0
			WHEN lower(e.name) = lower(?) THEN 1
			WHEN e.name ILIKE ? ESCAPE '\' THEN 2
			WHEN e.name ILIKE ? ESCAPE '\' THEN 3
			ELSE 4
		END, e.name, p.crate, p.version DESC, p.path`
	params = append(params, query, query, escapeLike(query)+"%", pattern)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.Query(q, params...)
	if err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}
	defer rows.Close()

	var hits []EntryHit
	for rows.Next() {
		var h EntryHit
		var kind string
		if err := rows.Scan(&h.PageID, &h.Crate, &h.Version, &h.Path, &kind, &h.Name, &h.Description); err != nil {
			return nil, err
		}
		h.Kind = sidebar.Kind(kind)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
