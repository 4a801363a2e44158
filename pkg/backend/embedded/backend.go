package embedded

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/thymos-run/thymos/internal/idgen"
	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/pkg/backend"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

func score(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	contentSet := make(map[string]struct{})
	for _, t := range tokenize(content) {
		contentSet[t] = struct{}{}
	}
	matches := 0
	for _, t := range queryTerms {
		if _, ok := contentSet[t]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}

// Backend is a backend.Backend implementation persisted to a local SQLite
// database. Each memory keeps every version it has ever held so snapshots
// taken before a later Store or Delete keep resolving.
type Backend struct {
	db *sql.DB
}

// Open returns a Backend backed by the SQLite database at dbPath, creating
// and migrating it if necessary.
func Open(dbPath string) (*Backend, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db}, nil
}

// Close releases the underlying database connection.
func (b *Backend) Close() error {
	return CloseDB(b.db)
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func encodeProperties(props map[string]any) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return json.Marshal(props)
}

func decodeProperties(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func (b *Backend) Store(content string, opts backend.StoreOptions) (string, error) {
	id := opts.ID
	if id == "" {
		id = idgen.New("mem")
	}
	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	versionID := idgen.UUID()

	props, err := encodeProperties(opts.Properties)
	if err != nil {
		return "", thyerrors.Internal("encode memory properties", err)
	}
	embedding := encodeEmbedding(opts.Embedding)

	err = Transact(b.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO memory_versions (memory_id, version_id, content, properties, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, versionID, content, props, embedding, createdAt,
		); err != nil {
			return fmt.Errorf("insert memory version: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO memories (id, current_version, deleted) VALUES (?, ?, 0)
			 ON CONFLICT(id) DO UPDATE SET current_version = excluded.current_version, deleted = 0`,
			id, versionID,
		); err != nil {
			return fmt.Errorf("upsert memory: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (b *Backend) Get(id string) (backend.Memory, bool, error) {
	row := b.db.QueryRow(`
		SELECT mv.content, mv.properties, mv.embedding, mv.created_at
		FROM memories m JOIN memory_versions mv
		  ON mv.memory_id = m.id AND mv.version_id = m.current_version
		WHERE m.id = ? AND m.deleted = 0`, id)

	var content string
	var props []byte
	var embedding []byte
	var createdAt time.Time
	if err := row.Scan(&content, &props, &embedding, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return backend.Memory{}, false, nil
		}
		return backend.Memory{}, false, fmt.Errorf("get memory: %w", err)
	}

	decodedProps, err := decodeProperties(props)
	if err != nil {
		return backend.Memory{}, false, thyerrors.Internal("decode memory properties", err)
	}

	now := time.Now()
	return backend.Memory{
		ID:           id,
		Content:      content,
		CreatedAt:    createdAt,
		LastAccessed: &now,
		Properties:   decodedProps,
		Embedding:    decodeEmbedding(embedding),
	}, true, nil
}

func (b *Backend) Delete(id string) (bool, error) {
	res, err := b.db.Exec(`UPDATE memories SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *Backend) Count() (int, error) {
	var n int
	err := b.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE deleted = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

func (b *Backend) Search(query string, opts backend.SearchOptions) ([]backend.SearchResult, error) {
	rows, err := b.db.Query(`
		SELECT m.id, mv.content, mv.properties, mv.embedding, mv.created_at
		FROM memories m JOIN memory_versions mv
		  ON mv.memory_id = m.id AND mv.version_id = m.current_version
		WHERE m.deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	terms := tokenize(query)
	var results []backend.SearchResult
	for rows.Next() {
		var id, content string
		var props, embedding []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &content, &props, &embedding, &createdAt); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		s := score(terms, content)
		if s <= 0 {
			continue
		}
		decodedProps, err := decodeProperties(props)
		if err != nil {
			return nil, thyerrors.Internal("decode memory properties", err)
		}
		results = append(results, backend.SearchResult{
			Memory: backend.Memory{
				ID:         id,
				Content:    content,
				CreatedAt:  createdAt,
				Properties: decodedProps,
				Embedding:  decodeEmbedding(embedding),
			},
			Score: s,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortResults(results)
	return limitResults(results, opts.Limit), nil
}

func (b *Backend) CreateSnapshot(tag string) (backend.Snapshot, error) {
	id := tag
	if id == "" {
		id = idgen.UUID()
	}

	rows, err := b.db.Query(`SELECT id, current_version FROM memories WHERE deleted = 0`)
	if err != nil {
		return backend.Snapshot{}, fmt.Errorf("snapshot query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	versionMap := make(map[string]string)
	for rows.Next() {
		var memID, versionID string
		if err := rows.Scan(&memID, &versionID); err != nil {
			return backend.Snapshot{}, err
		}
		versionMap[memID] = versionID
	}
	if err := rows.Err(); err != nil {
		return backend.Snapshot{}, err
	}

	return backend.Snapshot{
		SnapshotID: id,
		VersionMap: versionMap,
		CreatedAt:  time.Now(),
	}, nil
}

func (b *Backend) Restore(snap backend.Snapshot, mode backend.RestoreMode) error {
	return Transact(b.db, func(tx *sql.Tx) error {
		for memID, versionID := range snap.VersionMap {
			var exists int
			err := tx.QueryRow(
				`SELECT 1 FROM memory_versions WHERE memory_id = ? AND version_id = ?`,
				memID, versionID,
			).Scan(&exists)
			if err == sql.ErrNoRows {
				return thyerrors.NotFound("memory version", memID+"@"+versionID)
			}
			if err != nil {
				return fmt.Errorf("check version existence: %w", err)
			}
		}

		if mode == backend.RestoreOverwrite {
			ids := make([]string, 0, len(snap.VersionMap))
			for memID := range snap.VersionMap {
				ids = append(ids, memID)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
			args := make([]any, len(ids))
			for i, id := range ids {
				args[i] = id
			}
			query := "DELETE FROM memories"
			if len(ids) > 0 {
				query += fmt.Sprintf(" WHERE id NOT IN (%s)", placeholders)
			}
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("overwrite restore cleanup: %w", err)
			}
		}

		for memID, versionID := range snap.VersionMap {
			if _, err := tx.Exec(
				`INSERT INTO memories (id, current_version, deleted) VALUES (?, ?, 0)
				 ON CONFLICT(id) DO UPDATE SET current_version = excluded.current_version, deleted = 0`,
				memID, versionID,
			); err != nil {
				return fmt.Errorf("restore upsert: %w", err)
			}
		}
		return nil
	})
}

func (b *Backend) SearchInSnapshot(snap backend.Snapshot, query string, opts backend.SearchOptions) ([]backend.SearchResult, error) {
	terms := tokenize(query)
	var results []backend.SearchResult
	for memID, versionID := range snap.VersionMap {
		var content string
		var props, embedding []byte
		var createdAt time.Time
		err := b.db.QueryRow(
			`SELECT content, properties, embedding, created_at FROM memory_versions
			 WHERE memory_id = ? AND version_id = ?`, memID, versionID,
		).Scan(&content, &props, &embedding, &createdAt)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("search snapshot row: %w", err)
		}

		s := score(terms, content)
		if s <= 0 {
			continue
		}
		decodedProps, err := decodeProperties(props)
		if err != nil {
			return nil, thyerrors.Internal("decode memory properties", err)
		}
		results = append(results, backend.SearchResult{
			Memory: backend.Memory{
				ID:         memID,
				Content:    content,
				CreatedAt:  createdAt,
				Properties: decodedProps,
				Embedding:  decodeEmbedding(embedding),
			},
			Score: s,
		})
	}

	sortResults(results)
	return limitResults(results, opts.Limit), nil
}

func (b *Backend) GetInSnapshot(snap backend.Snapshot, id string) (backend.Memory, bool, error) {
	versionID, ok := snap.VersionMap[id]
	if !ok {
		return backend.Memory{}, false, nil
	}

	var content string
	var props, embedding []byte
	var createdAt time.Time
	err := b.db.QueryRow(
		`SELECT content, properties, embedding, created_at FROM memory_versions
		 WHERE memory_id = ? AND version_id = ?`, id, versionID,
	).Scan(&content, &props, &embedding, &createdAt)
	if err == sql.ErrNoRows {
		return backend.Memory{}, false, nil
	}
	if err != nil {
		return backend.Memory{}, false, fmt.Errorf("get in snapshot: %w", err)
	}

	decodedProps, err := decodeProperties(props)
	if err != nil {
		return backend.Memory{}, false, thyerrors.Internal("decode memory properties", err)
	}
	return backend.Memory{
		ID:         id,
		Content:    content,
		CreatedAt:  createdAt,
		Properties: decodedProps,
		Embedding:  decodeEmbedding(embedding),
	}, true, nil
}

func (b *Backend) HealthCheck() (backend.HealthStatus, error) {
	if err := b.db.PingContext(context.Background()); err != nil {
		return backend.HealthStatus{Healthy: false, Detail: err.Error()}, nil
	}
	return backend.HealthStatus{Healthy: true, Detail: "sqlite backend reachable"}, nil
}

func sortResults(results []backend.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})
}

func limitResults(results []backend.SearchResult, limit int) []backend.SearchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

// Transact runs fn inside a transaction, retrying the whole attempt on
// transient SQLite contention.
func Transact(db *sql.DB, fn func(tx *sql.Tx) error) error {
	return RetryWithBackoff(context.Background(), func() error {
		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

