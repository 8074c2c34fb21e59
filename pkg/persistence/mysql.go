package persistence

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql" // database/sql driver registration

	"github.com/arkhold/ftpvault/pkg/model"
)

// Store is the MySQL-backed Port. All public methods serialize on mu:
// the port is called from multiple site workers concurrently and each
// mutation's bind+execute must be atomic (§5 "Shared resources").
type Store struct {
	db *sql.DB
	mu sync.Mutex

	stmts *statements
}

// statements caches the prepared statements reused across calls,
// mirroring the distilled spec's "reusable parameter cache" (§4.1).
type statements struct {
	loadSites       *sql.Stmt
	loadIgnores     *sql.Stmt
	loadCurrentTree *sql.Stmt
	loadTreeAt      *sql.Stmt
	insertFile      *sql.Stmt
	insertHistory   *sql.Stmt
	updateFile      *sql.Stmt
	deleteFile      *sql.Stmt
}

// Open connects to dsn, runs pending migrations, and prepares the
// statement cache.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &Error{Op: "ping", Err: err}
	}

	if err := RunMigrations(dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) prepare(ctx context.Context) error {
	var err error
	st := &statements{}

	prep := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = s.db.PrepareContext(ctx, query)
	}

	prep(&st.loadSites, `SELECT id, login, password FROM sites`)
	prep(&st.loadIgnores, `SELECT siteId, attribute, operand FROM ignores WHERE siteId = ?`)
	prep(&st.loadCurrentTree, queryCurrentTree)
	prep(&st.loadTreeAt, queryTreeAt)
	prep(&st.insertFile, `INSERT INTO files (siteId, fullName, isDirectory, modifyDate, crc32, timePoint) VALUES (?, ?, ?, ?, ?, ?)`)
	prep(&st.insertHistory, `INSERT INTO history (fileId, timePoint, status) VALUES (?, ?, ?)`)
	prep(&st.updateFile, `UPDATE files SET fullName = ?, isDirectory = ?, modifyDate = ?, crc32 = ?, timePoint = ? WHERE id = ? AND siteId = ?`)
	prep(&st.deleteFile, `UPDATE files SET modifyDate = '', timePoint = ? WHERE id = ? AND siteId = ?`)

	if err != nil {
		return &Error{Op: "prepare", Err: err}
	}
	s.stmts = st
	return nil
}

const queryCurrentTree = `
SELECT f.id, f.fullName, f.isDirectory, f.modifyDate, f.crc32, f.timePoint
FROM files f
INNER JOIN (
	SELECT h1.fileId, h1.status
	FROM history h1
	INNER JOIN (
		SELECT fileId, MAX(timePoint) AS maxTp FROM history GROUP BY fileId
	) h2 ON h1.fileId = h2.fileId AND h1.timePoint = h2.maxTp
) latest ON latest.fileId = f.id
WHERE f.siteId = ? AND latest.status <> -1
`

const queryTreeAt = `
SELECT f.id, f.fullName, f.isDirectory, f.modifyDate, f.crc32, latest.timePoint, latest.status
FROM files f
INNER JOIN (
	SELECT h1.fileId, h1.timePoint, h1.status
	FROM history h1
	INNER JOIN (
		SELECT fileId, MAX(timePoint) AS maxTp FROM history WHERE timePoint <= ? GROUP BY fileId
	) h2 ON h1.fileId = h2.fileId AND h1.timePoint = h2.maxTp
) latest ON latest.fileId = f.id
WHERE f.siteId = ?
`

func (s *Store) LoadSites(ctx context.Context) ([]model.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.stmts.loadSites.QueryContext(ctx)
	if err != nil {
		return nil, mapMySQLError("loadSites", 0, err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		var site model.Site
		if err := rows.Scan(&site.ID, &site.Login, &site.Password); err != nil {
			return nil, mapMySQLError("loadSites", 0, err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) LoadIgnores(ctx context.Context, siteID uint64) ([]model.Ignore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.stmts.loadIgnores.QueryContext(ctx, siteID)
	if err != nil {
		return nil, mapMySQLError("loadIgnores", siteID, err)
	}
	defer rows.Close()

	var ignores []model.Ignore
	for rows.Next() {
		var ig model.Ignore
		if err := rows.Scan(&ig.SiteID, &ig.Attribute, &ig.Operand); err != nil {
			return nil, mapMySQLError("loadIgnores", siteID, err)
		}
		ignores = append(ignores, ig)
	}
	return ignores, rows.Err()
}

func (s *Store) LoadCurrentTree(ctx context.Context, siteID uint64) ([]model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.stmts.loadCurrentTree.QueryContext(ctx, siteID)
	if err != nil {
		return nil, mapMySQLError("loadCurrentTree", siteID, err)
	}
	defer rows.Close()

	var files []model.File
	for rows.Next() {
		var f model.File
		var tp int64
		if err := rows.Scan(&f.ID, &f.FullName, &f.IsDirectory, &f.ModifyDate, &f.CRC32, &tp); err != nil {
			return nil, mapMySQLError("loadCurrentTree", siteID, err)
		}
		f.SiteID = siteID
		f.TimePoint = model.TimePoint(tp)
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) LoadTreeAt(ctx context.Context, siteID uint64, target model.TimePoint) ([]TreeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.stmts.loadTreeAt.QueryContext(ctx, int64(target), siteID)
	if err != nil {
		return nil, mapMySQLError("loadTreeAt", siteID, err)
	}
	defer rows.Close()

	var entries []TreeEntry
	for rows.Next() {
		var e TreeEntry
		var tp int64
		var status int
		if err := rows.Scan(&e.File.ID, &e.File.FullName, &e.File.IsDirectory, &e.File.ModifyDate, &e.File.CRC32, &tp, &status); err != nil {
			return nil, mapMySQLError("loadTreeAt", siteID, err)
		}
		e.File.SiteID = siteID
		e.File.TimePoint = model.TimePoint(tp)
		e.Status = model.HistoryStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) InsertFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapMySQLError("insertFile", siteID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.StmtContext(ctx, s.stmts.insertFile).ExecContext(ctx,
		siteID, f.FullName, f.IsDirectory, f.ModifyDate, f.CRC32, int64(timePoint))
	if err != nil {
		return 0, mapMySQLError("insertFile", siteID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapMySQLError("insertFile", siteID, err)
	}

	if _, err := tx.StmtContext(ctx, s.stmts.insertHistory).ExecContext(ctx,
		id, int64(timePoint), int(model.Added)); err != nil {
		return 0, mapMySQLError("insertFile", siteID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, mapMySQLError("insertFile", siteID, err)
	}
	return uint64(id), nil
}

func (s *Store) UpdateFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapMySQLError("updateFile", siteID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.StmtContext(ctx, s.stmts.updateFile).ExecContext(ctx,
		f.FullName, f.IsDirectory, f.ModifyDate, f.CRC32, int64(timePoint), f.ID, siteID); err != nil {
		return mapMySQLError("updateFile", siteID, err)
	}

	if _, err := tx.StmtContext(ctx, s.stmts.insertHistory).ExecContext(ctx,
		f.ID, int64(timePoint), int(model.Modified)); err != nil {
		return mapMySQLError("updateFile", siteID, err)
	}

	if err := tx.Commit(); err != nil {
		return mapMySQLError("updateFile", siteID, err)
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, siteID uint64, f model.File, timePoint model.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapMySQLError("deleteFile", siteID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.StmtContext(ctx, s.stmts.deleteFile).ExecContext(ctx,
		int64(timePoint), f.ID, siteID); err != nil {
		return mapMySQLError("deleteFile", siteID, err)
	}

	if _, err := tx.StmtContext(ctx, s.stmts.insertHistory).ExecContext(ctx,
		f.ID, int64(timePoint), int(model.Deleted)); err != nil {
		return mapMySQLError("deleteFile", siteID, err)
	}

	if err := tx.Commit(); err != nil {
		return mapMySQLError("deleteFile", siteID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
