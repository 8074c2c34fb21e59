// Package persistence implements the Persistence Port (C1): the typed
// gateway to the relational store backing sites, files, history and
// ignores. Every mutation is a transactional insert/update plus a
// paired history append; every public method is safe for concurrent
// use because Port serializes on a single mutex, exactly as the site
// workers need (§5 "Shared resources").
package persistence

import (
	"context"

	"github.com/arkhold/ftpvault/pkg/model"
)

// TreeEntry pairs a file's current attributes with the status of the
// history event that made it current as of some queried timePoint.
// LoadTreeAt retains Deleted entries so the restore planner can drop
// them explicitly (§4.7 step 4) instead of them silently vanishing.
type TreeEntry struct {
	File   model.File
	Status model.HistoryStatus
}

// Port is the gateway the Scheduler, Reconciler, Restore Planner and
// batch Runner read and mutate through. Implementations must be safe for concurrent use by multiple
// site workers.
type Port interface {
	LoadSites(ctx context.Context) ([]model.Site, error)
	LoadIgnores(ctx context.Context, siteID uint64) ([]model.Ignore, error)

	// LoadCurrentTree returns the latest non-deleted revision per path.
	LoadCurrentTree(ctx context.Context, siteID uint64) ([]model.File, error)

	// LoadTreeAt returns, for each file, the row whose history event
	// has the maximum timePoint <= target. Deleted entries are
	// retained so the restore planner can skip them explicitly.
	LoadTreeAt(ctx context.Context, siteID uint64, target model.TimePoint) ([]TreeEntry, error)

	// InsertFile inserts a new file row and appends a HistoryEvent(Added)
	// in the same transaction, returning the driver-assigned id.
	InsertFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) (uint64, error)

	// UpdateFile updates an existing file row's attributes and appends
	// a HistoryEvent(Modified) in the same transaction.
	UpdateFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) error

	// DeleteFile clears modifyDate on the row and appends a
	// HistoryEvent(Deleted); the row itself is kept.
	DeleteFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) error

	Close() error
}
