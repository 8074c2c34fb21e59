package ftpclient

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Download streams remotePath to localPath while accumulating a CRC32
// over the raw transferred bytes (binary mode; jlaffaye/ftp issues TYPE I
// by default, so no newline translation ever touches the checksum).
func (c *Client) Download(remotePath, localPath string) (uint32, error) {
	resp, err := c.conn.Retr(remotePath)
	if err != nil {
		return 0, &TransportError{Op: "retr", Path: remotePath, Err: err}
	}
	defer func() { _ = resp.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(localPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	sum := crc32.NewIEEE()
	if _, err := io.Copy(io.MultiWriter(f, sum), resp); err != nil {
		return 0, &TransportError{Op: "retr", Path: remotePath, Err: err}
	}
	return sum.Sum32(), nil
}

// Upload uploads localPath to the current remote directory under
// remoteName. Directories are created and descended into recursively;
// files are streamed with STOR.
func (c *Client) Upload(localPath, remoteName string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if err := c.conn.MakeDir(remoteName); err != nil {
			// Directory may already exist from a prior partial restore; proceed.
			_ = err
		}
		if err := c.Chdir(remoteName); err != nil {
			return err
		}
		entries, err := os.ReadDir(localPath)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := c.Upload(filepath.Join(localPath, e.Name()), e.Name()); err != nil {
				return err
			}
		}
		return c.Cdup()
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := c.conn.Stor(remoteName, f); err != nil {
		return &TransportError{Op: "stor", Path: remoteName, Err: err}
	}
	return nil
}

// RecursiveRemove tries CWD path first; on success it lists and removes
// every child, CDUPs back out, and RMDs path. On failure it treats path
// as a plain file and issues DELE.
func (c *Client) RecursiveRemove(path string) error {
	if err := c.conn.ChangeDir(path); err != nil {
		if delErr := c.conn.Delete(path); delErr != nil {
			return &TransportError{Op: "remove", Path: path, Err: delErr}
		}
		return nil
	}

	names, err := c.conn.NameList("")
	if err != nil {
		return &TransportError{Op: "remove", Path: path, Err: err}
	}
	for _, name := range names {
		if name == "." || name == ".." || name == "" {
			continue
		}
		if err := c.RecursiveRemove(name); err != nil {
			return err
		}
	}

	if err := c.Cdup(); err != nil {
		return err
	}
	if err := c.conn.RemoveDir(path); err != nil {
		return &TransportError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
