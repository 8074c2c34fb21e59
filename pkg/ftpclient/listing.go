package ftpclient

import (
	"path"
	"time"

	rawftp "github.com/jlaffaye/ftp"
)

// mlsdTimeLayout is the "modify" fact format from RFC 3659.
const mlsdTimeLayout = "20060102150405"

// List lists dirPath, transparently choosing MLSD when the server
// advertised it, else falling back to LIST+MDTM probing. The returned
// bool reports which mode was used, since the reconciler/walker treat
// LIST-derived entries without an MDTM timestamp specially (open
// question #2 in DESIGN.md: such entries get the generation's own
// TimePoint as their ModifyDate, which is preserved intentionally).
func (c *Client) List(dirPath string) ([]Entry, bool, error) {
	if c.caps.MLSD {
		entries, err := c.listMLSD(dirPath)
		return entries, true, err
	}
	entries, err := c.listLIST(dirPath)
	return entries, false, err
}

// listMLSD lists dirPath using the server's machine-parseable listing.
// Entries with type cdir/pdir are discarded by jlaffaye/ftp already;
// this only drops the literal "." and ".." names defensively.
func (c *Client) listMLSD(dirPath string) ([]Entry, error) {
	raw, err := c.conn.List(dirPath)
	if err != nil {
		return nil, &TransportError{Op: "mlsd", Path: dirPath, Err: err}
	}

	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." || e.Name == "" {
			continue
		}
		out = append(out, Entry{
			Name:       e.Name,
			FullName:   joinPath(dirPath, e.Name),
			IsDir:      e.Type == rawftp.EntryTypeFolder,
			ModifyDate: formatModify(e.Time),
		})
	}
	return out, nil
}

// listLIST lists dirPath trusting only the returned names; directory-ness
// is probed a posteriori with CWD/CDUP, and mtime is fetched via MDTM
// when the server advertises it.
func (c *Client) listLIST(dirPath string) ([]Entry, error) {
	names, err := c.conn.NameList(dirPath)
	if err != nil {
		return nil, &TransportError{Op: "list", Path: dirPath, Err: err}
	}

	out := make([]Entry, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		if base == "." || base == ".." || base == "" {
			continue
		}
		full := joinPath(dirPath, base)

		entry := Entry{Name: base, FullName: full, IsDir: c.probeIsDir(full)}
		if !entry.IsDir && c.caps.MDTM {
			if t, err := c.conn.GetTime(full); err == nil {
				entry.ModifyDate = formatModify(t)
			}
			// MDTM unsupported or failed: ModifyDate stays "" here; the
			// reconciler substitutes the generation TimePoint before
			// storing or comparing it (§9 open question #2).
		}
		out = append(out, entry)
	}
	return out, nil
}

// probeIsDir tests directory-ness by attempting to CWD into path and
// immediately CDUP back out, per the distilled spec's LIST-mode algorithm.
func (c *Client) probeIsDir(path string) bool {
	if err := c.conn.ChangeDir(path); err != nil {
		return false
	}
	_ = c.conn.ChangeDirToParent()
	return true
}

func formatModify(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(mlsdTimeLayout)
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return path.Join(dir, name)
}
