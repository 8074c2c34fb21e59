// Package restore implements the Restore Planner (C7): given a site and
// a target point in time, it selects the latest non-deleted revision of
// every path at or before that time, extracts each path from its
// originating generation archive, and re-uploads the reconstructed tree
// to the configured remote restore path (§4.7).
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arkhold/ftpvault/internal/logger"
	"github.com/arkhold/ftpvault/pkg/archiver"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
)

// Session is the subset of ftpclient.Client the planner needs to land a
// reconstructed tree back on the origin server. Declared narrowly in
// this package, mirroring pkg/walker.Session and pkg/reconciler.Session,
// so tests can script a fake without a real control connection.
type Session interface {
	Chdir(path string) error
	Mkdir(path string) error
	Upload(localPath, remoteName string) error
	RecursiveRemove(path string) error
}

// Planner drives one restore invocation.
type Planner struct {
	port       persistence.Port
	session    Session
	backupRoot string
	restoreTmp string
}

// New creates a Planner. backupRoot is backup.path (where generation
// archives live); restoreTmp is a scratch directory for the
// reconstructed tree, purged after each restore.
func New(port persistence.Port, session Session, backupRoot, restoreTmp string) *Planner {
	return &Planner{port: port, session: session, backupRoot: backupRoot, restoreTmp: restoreTmp}
}

// ErrNoArchives is returned when a site has no history at or before the
// requested target — §7 "NotFound on restore: log and exit 0".
var ErrNoArchives = persistence.ErrNotFound

// Restore reconstructs siteID's tree as of target and uploads it to
// remotePath on the origin server.
func (p *Planner) Restore(ctx context.Context, siteID uint64, target time.Time, remotePath string) error {
	timePoint := model.TimePointFromTime(target.UTC())

	entries, err := p.port.LoadTreeAt(ctx, siteID, timePoint)
	if err != nil {
		return fmt.Errorf("restore: load tree: %w", err)
	}

	latest := latestPerPath(entries)

	live := make([]model.File, 0, len(latest))
	for _, e := range latest {
		if e.Status == model.Deleted {
			continue
		}
		live = append(live, e.File)
	}

	if len(live) == 0 {
		logger.Info("restore: nothing to restore", logger.KeySite, siteID, logger.KeyTimePoint, timePoint)
		return ErrNoArchives
	}

	groups := groupByGeneration(live)

	runRoot := filepath.Join(p.restoreTmp, strconv.FormatUint(siteID, 10), timePoint.String())
	dataDir := filepath.Join(runRoot, "data")
	manifestDir := filepath.Join(runRoot, "manifests")
	_ = os.RemoveAll(runRoot)
	defer func() { _ = os.RemoveAll(runRoot) }()

	for generation, files := range groups {
		archivePath := filepath.Join(p.backupRoot, strconv.FormatUint(siteID, 10), generation.String()+".tar.gz")

		fileList := manifestNames(files)
		if err := writeManifest(filepath.Join(manifestDir, generation.String()+".yaml"), fileList); err != nil {
			return fmt.Errorf("restore: write manifest: %w", err)
		}

		if err := archiver.ExtractSubset(archivePath, dataDir, fileList); err != nil {
			return fmt.Errorf("restore: extract %s: %w", archivePath, err)
		}
	}

	if err := p.land(dataDir, remotePath); err != nil {
		return fmt.Errorf("restore: land: %w", err)
	}

	return nil
}

// land descends to the parent of remotePath (creating any missing path
// components), recursive-removes the destination leaf, then uploads
// dataDir in its place under the leaf's name (§4.7 step 7).
func (p *Planner) land(dataDir, remotePath string) error {
	components := splitComponents(remotePath)
	if len(components) == 0 {
		return fmt.Errorf("restore.path must name at least one component")
	}
	leaf := components[len(components)-1]

	for _, component := range components[:len(components)-1] {
		if err := p.session.Chdir(component); err == nil {
			continue
		}
		if err := p.session.Mkdir(component); err != nil {
			return fmt.Errorf("mkdir %s: %w", component, err)
		}
		if err := p.session.Chdir(component); err != nil {
			return fmt.Errorf("chdir %s: %w", component, err)
		}
	}

	if err := p.session.RecursiveRemove(leaf); err != nil {
		logger.Warn("restore: destination remove failed (may not exist)", logger.KeyPath, remotePath, logger.KeyError, err.Error())
	}

	return p.session.Upload(dataDir, leaf)
}

func splitComponents(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// latestPerPath collapses entries to the one with the greatest TimePoint
// per FullName (§4.7 step 3). persistence.Port implementations already
// return one row per path at the requested instant, so this is a
// defensive pass rather than load-bearing — it keeps the planner correct
// even against a Port that returns multiple historical rows per path.
func latestPerPath(entries []persistence.TreeEntry) map[string]persistence.TreeEntry {
	latest := make(map[string]persistence.TreeEntry, len(entries))
	for _, e := range entries {
		cur, ok := latest[e.File.FullName]
		if !ok || e.File.TimePoint > cur.File.TimePoint {
			latest[e.File.FullName] = e
		}
	}
	return latest
}

// groupByGeneration buckets files by the TimePoint that produced their
// current revision — each bucket names one source archive (§4.7 step 5).
func groupByGeneration(files []model.File) map[model.TimePoint][]model.File {
	groups := make(map[model.TimePoint][]model.File)
	for _, f := range files {
		groups[f.TimePoint] = append(groups[f.TimePoint], f)
	}
	return groups
}

// manifestNames renders the archive-relative names ExtractSubset expects,
// with a trailing slash for directories so pre-creation picks them up.
func manifestNames(files []model.File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		name := strings.TrimPrefix(f.FullName, "/")
		if f.IsDirectory {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeManifest(path string, names []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(names)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
