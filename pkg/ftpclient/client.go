// Package ftpclient wraps an FTP session with the primitives the tree
// walker, reconciler and restore planner need: capability-aware
// listing, checksumming downloads, recursive uploads/removals, and a
// raw-command escape hatch for batch mode. It is not safe for
// concurrent use — each site worker owns exactly one Client (§5).
package ftpclient

import (
	"time"

	rawftp "github.com/jlaffaye/ftp"
)

// Client is one logged-in FTP session plus its negotiated capabilities.
type Client struct {
	conn    *rawftp.ServerConn
	raw     *rawSession
	addr    string
	timeout time.Duration
	caps    capabilities
}

// Dial connects to addr (host[:port]) and negotiates capabilities via
// FEAT before the session is handed to a caller. timeout of 0 uses the
// driver default.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	raw, err := dialRaw(addr, timeout)
	if err != nil {
		return nil, err
	}

	var caps capabilities
	if resp, err := raw.sendCommand("FEAT", ""); err == nil {
		caps = parseFeat(resp)
	}

	opts := []rawftp.DialOption{}
	if timeout > 0 {
		opts = append(opts, rawftp.DialWithTimeout(timeout))
	}
	conn, err := rawftp.Dial(addr, opts...)
	if err != nil {
		_ = raw.close()
		return nil, &TransportError{Op: "dial", Path: addr, Err: err}
	}

	return &Client{conn: conn, raw: raw, addr: addr, timeout: timeout, caps: caps}, nil
}

// Login authenticates both the listing session and the raw escape-hatch
// session with the same credentials.
func (c *Client) Login(user, password string) error {
	if err := c.conn.Login(user, password); err != nil {
		return &TransportError{Op: "login", Path: c.addr, Err: err}
	}
	if err := c.raw.login(user, password); err != nil {
		return err
	}
	return nil
}

// Close logs out and closes both underlying connections.
func (c *Client) Close() error {
	err := c.conn.Quit()
	if rawErr := c.raw.close(); err == nil {
		err = rawErr
	}
	return err
}

// Capabilities returns the negotiated server capabilities, used by the
// walker to decide between MLSD and LIST traversal.
func (c *Client) Capabilities() (mlsd, mdtm bool) {
	return c.caps.MLSD, c.caps.MDTM
}

// Chdir changes the current remote directory.
func (c *Client) Chdir(path string) error {
	if err := c.conn.ChangeDir(path); err != nil {
		return &TransportError{Op: "chdir", Path: path, Err: err}
	}
	return nil
}

// Cdup moves up one remote directory level.
func (c *Client) Cdup() error {
	if err := c.conn.ChangeDirToParent(); err != nil {
		return &TransportError{Op: "cdup", Path: "..", Err: err}
	}
	return nil
}

// Mkdir creates a remote directory.
func (c *Client) Mkdir(path string) error {
	if err := c.conn.MakeDir(path); err != nil {
		return &TransportError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// SendCommand is the raw escape hatch used by batch mode (-b/--batch):
// it issues verb [arg] over the dedicated raw session and returns the
// server's full response text, whatever its status code.
func (c *Client) SendCommand(verb, arg string) (string, error) {
	return c.raw.sendCommand(verb, arg)
}
