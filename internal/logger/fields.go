package logger

// Standard field keys for structured logging, used consistently across
// the scheduler, walker, reconciler, archiver and restore planner so
// log lines can be grepped/aggregated by these keys regardless of
// which component emitted them.
const (
	KeySite       = "site"        // site ID
	KeyHost       = "host"        // FTP host:port
	KeyPath       = "path"        // remote path being processed
	KeyTimePoint  = "time_point"  // generation timestamp (microseconds)
	KeyStatus     = "status"      // Added / Modified / Deleted
	KeyArchive    = "archive"     // archive file path
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error detail for a log line that isn't itself an error return
)
