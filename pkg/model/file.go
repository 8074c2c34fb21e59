package model

// HistoryStatus records what happened to a file at a given TimePoint.
// The numeric values match the distilled spec exactly; callers should
// not assume any ordering beyond what's stated in the spec.
type HistoryStatus int

const (
	Added    HistoryStatus = 0
	Modified HistoryStatus = 1
	Deleted  HistoryStatus = -1
)

// String renders the status the way it appears in log lines and history
// queries.
func (s HistoryStatus) String() string {
	switch s {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// File is one row of the current-or-historical file tree. ID is 0 for a
// file that has not yet been persisted. Deletion status is never stored
// on File itself (see DESIGN.md "deleted-file sentinel" decision) — it
// lives solely in the latest HistoryEvent for FileID.
type File struct {
	ID          uint64
	SiteID      uint64
	FullName    string // absolute path from site root, "/"-normalized
	IsDirectory bool
	ModifyDate  string // MLSD "modify" fact, or MDTM response, or (LIST w/o MDTM) the generation timestamp
	CRC32       uint32 // 0 for directories or files never downloaded
	TimePoint   TimePoint
}

// HistoryEvent is one append-only row: "at generation TimePoint, file
// FileID underwent Status." Multiple files can share a TimePoint; that
// shared value is also the generation's archive identifier.
type HistoryEvent struct {
	FileID    uint64
	TimePoint TimePoint
	Status    HistoryStatus
}
