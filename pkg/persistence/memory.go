package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/arkhold/ftpvault/pkg/model"
)

// Memory is an in-memory Port used by tests; all data is lost on
// process exit. Grounded on
// dittofs's memory identity store: a mutex-guarded map keyed the same
// way the real store indexes rows, returning copies so callers can't
// mutate internal state.
type Memory struct {
	mu      sync.Mutex
	nextID  uint64
	sites   []model.Site
	files   map[uint64]model.File
	history map[uint64][]model.HistoryEvent
	ignores map[uint64][]model.Ignore
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:   make(map[uint64]model.File),
		history: make(map[uint64][]model.HistoryEvent),
		ignores: make(map[uint64][]model.Ignore),
	}
}

// SeedSite registers a site and its ignore rules, for test setup.
func (m *Memory) SeedSite(site model.Site, ignores []model.Ignore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites = append(m.sites, site)
	m.ignores[site.ID] = ignores
}

func (m *Memory) LoadSites(ctx context.Context) ([]model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Site, len(m.sites))
	copy(out, m.sites)
	return out, nil
}

func (m *Memory) LoadIgnores(ctx context.Context, siteID uint64) ([]model.Ignore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Ignore, len(m.ignores[siteID]))
	copy(out, m.ignores[siteID])
	return out, nil
}

func (m *Memory) LoadCurrentTree(ctx context.Context, siteID uint64) ([]model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.File
	for id, f := range m.files {
		if f.SiteID != siteID {
			continue
		}
		events := m.history[id]
		if len(events) == 0 {
			continue
		}
		if latest(events).Status == model.Deleted {
			continue
		}
		out = append(out, f)
	}
	sortFiles(out)
	return out, nil
}

func (m *Memory) LoadTreeAt(ctx context.Context, siteID uint64, target model.TimePoint) ([]TreeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []TreeEntry
	for id, f := range m.files {
		if f.SiteID != siteID {
			continue
		}
		var best *model.HistoryEvent
		for i, ev := range m.history[id] {
			if ev.TimePoint > target {
				continue
			}
			if best == nil || ev.TimePoint > best.TimePoint {
				best = &m.history[id][i]
			}
		}
		if best == nil {
			continue
		}
		entry := f
		entry.TimePoint = best.TimePoint
		out = append(out, TreeEntry{File: entry, Status: best.Status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File.FullName < out[j].File.FullName })
	return out, nil
}

func (m *Memory) InsertFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	f.ID = m.nextID
	f.SiteID = siteID
	f.TimePoint = timePoint
	m.files[f.ID] = f
	m.history[f.ID] = append(m.history[f.ID], model.HistoryEvent{FileID: f.ID, TimePoint: timePoint, Status: model.Added})
	return f.ID, nil
}

func (m *Memory) UpdateFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[f.ID]; !ok {
		return ErrNotFound
	}
	f.SiteID = siteID
	f.TimePoint = timePoint
	m.files[f.ID] = f
	m.history[f.ID] = append(m.history[f.ID], model.HistoryEvent{FileID: f.ID, TimePoint: timePoint, Status: model.Modified})
	return nil
}

func (m *Memory) DeleteFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.files[f.ID]
	if !ok {
		return ErrNotFound
	}
	existing.ModifyDate = ""
	existing.TimePoint = timePoint
	m.files[f.ID] = existing
	m.history[f.ID] = append(m.history[f.ID], model.HistoryEvent{FileID: f.ID, TimePoint: timePoint, Status: model.Deleted})
	return nil
}

func (m *Memory) Close() error { return nil }

func latest(events []model.HistoryEvent) model.HistoryEvent {
	best := events[0]
	for _, e := range events[1:] {
		if e.TimePoint > best.TimePoint {
			best = e
		}
	}
	return best
}

func sortFiles(files []model.File) {
	sort.Slice(files, func(i, j int) bool { return files[i].FullName < files[j].FullName })
}

var _ Port = (*Memory)(nil)
