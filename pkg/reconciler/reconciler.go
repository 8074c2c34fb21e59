// Package reconciler implements the Reconciler (C5): it compares a
// walked FTP tree against the database's current tree, classifies each
// entry as Added, Modified or unchanged, downloads new/changed bytes
// into a per-generation staging directory, and finally packs that
// staging directory into an archive (§4.5).
package reconciler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arkhold/ftpvault/internal/logger"
	"github.com/arkhold/ftpvault/pkg/archiver"
	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/ignore"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
	"github.com/arkhold/ftpvault/pkg/walker"
)

// Downloader is the subset of ftpclient.Client the reconciler needs to
// pull bytes into staging, kept separate from walker.Session so tests
// can script the two independently.
type Downloader interface {
	Download(remotePath, localPath string) (uint32, error)
}

// Session combines walker.Session and Downloader: everything the
// reconciler's embedded walk needs from one FTP connection.
type Session interface {
	walker.Session
	Downloader
}

// Reconciler drives one site's generation: walk, diff, download,
// persist, archive.
type Reconciler struct {
	port       persistence.Port
	session    Session
	filter     *ignore.Filter
	reconnect  walker.Reconnector
	backupRoot string
}

// New creates a Reconciler for one site worker. backupRoot is the
// configured backup.path; the staging directory for this run is
// backupRoot/siteId/timePoint (§5 "staging tree ... partitioned per
// site").
func New(port persistence.Port, session Session, filter *ignore.Filter, reconnect walker.Reconnector, backupRoot string) *Reconciler {
	return &Reconciler{port: port, session: session, filter: filter, reconnect: reconnect, backupRoot: backupRoot}
}

// Result summarizes one generation's outcome.
type Result struct {
	TimePoint   model.TimePoint
	ArchivePath string
	HasChanges  bool
}

// Run executes one full generation for siteID at root, rooted at the
// given generation timestamp.
func (r *Reconciler) Run(ctx context.Context, siteID uint64, root string, timePoint model.TimePoint) (Result, error) {
	current, err := r.port.LoadCurrentTree(ctx, siteID)
	if err != nil {
		return Result{}, err
	}

	byPath := make(map[string]*trackedFile, len(current))
	for i := range current {
		byPath[current[i].FullName] = &trackedFile{file: current[i]}
	}

	staging := filepath.Join(r.backupRoot, strconv.FormatUint(siteID, 10), timePoint.String())
	_ = os.RemoveAll(staging) // purge any leftover from a crashed prior run (§5 "Cancellation")
	defer func() { _ = os.RemoveAll(staging) }()

	var hasFiles, hasChanges bool

	w := walker.New(r.session, r.filter, r.reconnect)
	walkErr := w.Walk(root, func(e ftpclient.Entry) {
		changed, filesFlag := r.reconcileEntry(ctx, siteID, staging, e, byPath, timePoint, w)
		if filesFlag {
			hasFiles = true
		}
		if changed {
			hasChanges = true
		}
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	for path, tracked := range byPath {
		if tracked.seen {
			continue
		}
		if err := r.port.DeleteFile(ctx, siteID, tracked.file, timePoint); err != nil {
			logger.Warn("reconciler: delete failed", logger.KeySite, siteID, logger.KeyPath, path, logger.KeyError, err.Error())
			continue
		}
		hasChanges = true
	}

	result := Result{TimePoint: timePoint, HasChanges: hasFiles || hasChanges}

	if !hasFiles && !hasChanges {
		logger.Info("reconciler: up to date", logger.KeySite, siteID)
		return result, nil
	}

	if hasFiles {
		archivePath, err := archiver.Pack(staging)
		if err != nil {
			return Result{}, err
		}
		result.ArchivePath = archivePath
	}

	return result, nil
}

type trackedFile struct {
	file model.File
	seen bool
}

// download pulls remotePath into localPath through whichever session the
// walker is driving right now, not the one the Reconciler was built with.
// A one-shot reconnect (§4.4) swaps the walker's session out from under
// it; downloading through the stale session would resume traversal
// bookkeeping but keep failing every transfer against a dead connection.
func (r *Reconciler) download(w *walker.Walker, remotePath, localPath string) (uint32, error) {
	downloader, ok := w.Session().(Downloader)
	if !ok {
		return 0, fmt.Errorf("reconciler: session for %s cannot download", remotePath)
	}
	return downloader.Download(remotePath, localPath)
}

// reconcileEntry applies one iteration of the §4.5 classification loop
// to a single walked entry. It returns (changed, hasFiles) so the
// caller can accumulate the generation-level flags.
func (r *Reconciler) reconcileEntry(ctx context.Context, siteID uint64, staging string, e ftpclient.Entry, byPath map[string]*trackedFile, timePoint model.TimePoint, w *walker.Walker) (changed bool, hasFiles bool) {
	stagingPath := filepath.Join(staging, filepath.FromSlash(e.FullName))

	// LIST-mode entries with no MDTM support carry no real mtime (§9 open
	// question #2): stamp the generation's own TimePoint instead, so every
	// later generation disagrees on modifyDate and falls through to the
	// authoritative CRC check rather than being treated as unchanged.
	modifyDate := e.ModifyDate
	if modifyDate == "" && !e.IsDir {
		modifyDate = timePoint.String()
	}

	tracked, existed := byPath[e.FullName]
	if !existed {
		f := model.File{FullName: e.FullName, IsDirectory: e.IsDir, ModifyDate: modifyDate}
		if !e.IsDir {
			crc, err := r.download(w, e.FullName, stagingPath)
			if err != nil {
				logger.Warn("reconciler: download failed", logger.KeyPath, e.FullName, logger.KeyError, err.Error())
				_ = os.Remove(stagingPath)
				return false, false
			}
			f.CRC32 = crc
			hasFiles = true
		}
		if _, err := r.port.InsertFile(ctx, siteID, f, timePoint); err != nil {
			logger.Warn("reconciler: insert failed", logger.KeyPath, e.FullName, logger.KeyError, err.Error())
			return false, false
		}
		return true, hasFiles
	}

	tracked.seen = true
	d := tracked.file

	if d.IsDirectory != e.IsDir {
		f := d
		f.IsDirectory = e.IsDir
		f.ModifyDate = modifyDate
		if e.IsDir {
			f.CRC32 = 0
		} else {
			crc, err := r.download(w, e.FullName, stagingPath)
			if err != nil {
				logger.Warn("reconciler: download failed", logger.KeyPath, e.FullName, logger.KeyError, err.Error())
				_ = os.Remove(stagingPath)
				return false, false
			}
			f.CRC32 = crc
			hasFiles = true
		}
		if err := r.port.UpdateFile(ctx, siteID, f, timePoint); err != nil {
			logger.Warn("reconciler: update failed", logger.KeyPath, e.FullName, logger.KeyError, err.Error())
			return false, false
		}
		return true, hasFiles
	}

	if e.IsDir {
		return false, false // directories never carry content (F3)
	}

	if d.ModifyDate == modifyDate {
		return false, false // unchanged
	}

	crc, err := r.download(w, e.FullName, stagingPath)
	if err != nil {
		logger.Warn("reconciler: download failed", logger.KeyPath, e.FullName, logger.KeyError, err.Error())
		_ = os.Remove(stagingPath)
		return false, false
	}

	if crc == d.CRC32 {
		// mtime differs but bytes match: idempotent no-op.
		_ = os.Remove(stagingPath)
		return false, false
	}

	f := d
	f.ModifyDate = modifyDate
	f.CRC32 = crc
	if err := r.port.UpdateFile(ctx, siteID, f, timePoint); err != nil {
		logger.Warn("reconciler: update failed", logger.KeyPath, e.FullName, logger.KeyError, err.Error())
		return false, false
	}
	return true, true
}
