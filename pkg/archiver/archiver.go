// Package archiver implements the Archiver (C6): compressing a
// generation's staging directory into a single archive, and later
// extracting a named subset of files out of a generation's archive for
// restore. Built directly on archive/tar and compress/gzip rather than
// shelling out to a platform tar binary — SPEC_FULL.md's domain-stack
// notes this choice against cs3org-reva's own archiver
// (internal/http/services/archiver/manager), which builds its tar
// entries by hand from archive/tar despite depending on a much larger
// third-party stack elsewhere: archiving is treated as a stdlib concern
// across the example pack, not an ecosystem one.
package archiver

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pack tars and gzip-compresses stagingDir into stagingDir+".tar.gz",
// with entry names relative to stagingDir, and returns the archive
// path. A non-zero-equivalent failure here is fatal to the generation
// (§7 "Archiver: fatal, abort the generation").
func Pack(stagingDir string) (string, error) {
	archivePath := stagingDir + ".tar.gz"

	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archiver: create %s: %w", archivePath, err)
	}
	defer func() { _ = out.Close() }()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == stagingDir {
			return nil
		}

		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(tw, f)
		return err
	})

	if closeErr := tw.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if closeErr := gz.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if walkErr != nil {
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("archiver: pack %s: %w", stagingDir, walkErr)
	}

	return archivePath, nil
}

// ExtractSubset extracts only the entries of archive whose relative
// path appears in fileList into destDir. Directory entries named in
// fileList are pre-created in destDir rather than extracted from the
// archive (tar directory headers carry no useful payload). An empty
// fileList is a no-op.
func ExtractSubset(archive, destDir string, fileList []string) error {
	if len(fileList) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(fileList))
	for _, f := range fileList {
		wanted[filepath.ToSlash(f)] = true
	}

	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("archiver: open %s: %w", archive, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archiver: gzip %s: %w", archive, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	extracted := make(map[string]bool, len(fileList))

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("archiver: read %s: %w", archive, err)
		}

		name := filepath.ToSlash(header.Name)
		if !wanted[name] {
			continue
		}

		dest := filepath.Join(destDir, filepath.FromSlash(name))
		if header.Typeflag == tar.TypeDir {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			extracted[name] = true
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return err
		}
		_ = out.Close()
		extracted[name] = true
	}

	return preCreateMissingDirs(destDir, fileList, extracted)
}

// preCreateMissingDirs handles fileList entries that name a directory
// but were never visited as a tar header (the archive only stores
// directories that existed in the generation's staging tree at pack
// time; a restore's file list may still name one explicitly).
func preCreateMissingDirs(destDir string, fileList []string, extracted map[string]bool) error {
	missing := make([]string, 0)
	for _, f := range fileList {
		name := filepath.ToSlash(f)
		if !extracted[name] && strings.HasSuffix(name, "/") {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	for _, name := range missing {
		if err := os.MkdirAll(filepath.Join(destDir, filepath.FromSlash(name)), 0o755); err != nil {
			return err
		}
	}
	return nil
}
