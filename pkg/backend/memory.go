package backend

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thymos-run/thymos/internal/idgen"
	"github.com/thymos-run/thymos/internal/thyerrors"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// score is the fraction of query terms present in content, per the spec's
// token-overlap relevance measure: matches / |query terms|.
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

type record struct {
	currentVersion string
	deleted        bool
}

// memoryBackend is the in-memory reference Backend. Every mutation of a
// memory's content is retained under a new version id so past snapshots
// keep resolving after later updates or deletes; deletion only flips the
// record's tombstone, it never forgets history.
type memoryBackend struct {
	mu       sync.Mutex
	records  map[string]*record
	versions map[string]map[string]Memory
}

// NewMemoryBackend returns a Backend that keeps everything in process
// memory. Suitable for tests and single-process worktrees; restarts lose
// all state.
func NewMemoryBackend() Backend {
	return &memoryBackend{
		records:  make(map[string]*record),
		versions: make(map[string]map[string]Memory),
	}
}

func (b *memoryBackend) Store(content string, opts StoreOptions) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := opts.ID
	if id == "" {
		id = idgen.New("mem")
	}
	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	mem := Memory{
		ID:        id,
		Content:   content,
		CreatedAt: createdAt,
	}
	if opts.Properties != nil {
		mem.Properties = make(map[string]any, len(opts.Properties))
		for k, v := range opts.Properties {
			mem.Properties[k] = v
		}
	}
	if opts.Embedding != nil {
		mem.Embedding = append([]float32(nil), opts.Embedding...)
	}

	versionID := idgen.UUID()
	if _, ok := b.versions[id]; !ok {
		b.versions[id] = make(map[string]Memory)
	}
	b.versions[id][versionID] = mem
	b.records[id] = &record{currentVersion: versionID}

	return id, nil
}

func (b *memoryBackend) Search(query string, opts SearchOptions) ([]SearchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	terms := tokenize(query)
	var results []SearchResult
	for id, rec := range b.records {
		if rec.deleted {
			continue
		}
		mem := b.versions[id][rec.currentVersion]
		s := score(terms, mem.Content)
		if s <= 0 {
			continue
		}
		results = append(results, SearchResult{Memory: mem.Clone(), Score: s})
	}

	sortResults(results)
	return limitResults(results, opts.Limit), nil
}

func (b *memoryBackend) Get(id string) (Memory, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok || rec.deleted {
		return Memory{}, false, nil
	}
	mem := b.versions[id][rec.currentVersion].Clone()
	now := time.Now()
	mem.LastAccessed = &now
	return mem, true, nil
}

func (b *memoryBackend) Delete(id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok || rec.deleted {
		return false, nil
	}
	rec.deleted = true
	return true, nil
}

func (b *memoryBackend) Count() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, rec := range b.records {
		if !rec.deleted {
			n++
		}
	}
	return n, nil
}

func (b *memoryBackend) CreateSnapshot(tag string) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := tag
	if id == "" {
		id = idgen.UUID()
	}

	versionMap := make(map[string]string)
	for memID, rec := range b.records {
		if rec.deleted {
			continue
		}
		versionMap[memID] = rec.currentVersion
	}

	return Snapshot{
		SnapshotID: id,
		VersionMap: versionMap,
		CreatedAt:  time.Now(),
	}, nil
}

func (b *memoryBackend) Restore(snap Snapshot, mode RestoreMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for memID, versionID := range snap.VersionMap {
		if _, ok := b.versions[memID][versionID]; !ok {
			return thyerrors.NotFound("memory version", memID+"@"+versionID)
		}
	}

	if mode == RestoreOverwrite {
		for memID := range b.records {
			if _, keep := snap.VersionMap[memID]; !keep {
				delete(b.records, memID)
			}
		}
	}

	for memID, versionID := range snap.VersionMap {
		b.records[memID] = &record{currentVersion: versionID}
	}

	return nil
}

func (b *memoryBackend) SearchInSnapshot(snap Snapshot, query string, opts SearchOptions) ([]SearchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	terms := tokenize(query)
	var results []SearchResult
	for memID, versionID := range snap.VersionMap {
		mem, ok := b.versions[memID][versionID]
		if !ok {
			continue
		}
		s := score(terms, mem.Content)
		if s <= 0 {
			continue
		}
		results = append(results, SearchResult{Memory: mem.Clone(), Score: s})
	}

	sortResults(results)
	return limitResults(results, opts.Limit), nil
}

func (b *memoryBackend) GetInSnapshot(snap Snapshot, id string) (Memory, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	versionID, ok := snap.VersionMap[id]
	if !ok {
		return Memory{}, false, nil
	}
	mem, ok := b.versions[id][versionID]
	if !ok {
		return Memory{}, false, nil
	}
	return mem.Clone(), true, nil
}

func (b *memoryBackend) HealthCheck() (HealthStatus, error) {
	return HealthStatus{Healthy: true, Detail: "in-memory backend"}, nil
}

// sortResults orders by score descending, breaking ties by most recently
// created first, matching the spec's deterministic ranking rule.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})
}

func limitResults(results []SearchResult, limit int) []SearchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
