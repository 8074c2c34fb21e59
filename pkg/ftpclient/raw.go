package ftpclient

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"time"
)

// rawSession is a minimal FTP control-connection client used only for
// capability negotiation (FEAT) and the sendCommand escape hatch. It
// deliberately does not reach into jlaffaye/ftp's private connection
// state to add this (the anti-pattern the original tool used — see
// SPEC_FULL.md §9) — it dials its own short-lived control connection
// with net/textproto instead.
type rawSession struct {
	conn *textproto.Conn
	nc   net.Conn
}

func dialRaw(addr string, timeout time.Duration) (*rawSession, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Path: addr, Err: err}
	}
	if timeout > 0 {
		_ = nc.SetDeadline(time.Now().Add(timeout))
	}
	conn := textproto.NewConn(nc)
	if _, _, err := conn.ReadResponse(220); err != nil {
		_ = nc.Close()
		return nil, &TransportError{Op: "greeting", Path: addr, Err: err}
	}
	return &rawSession{conn: conn, nc: nc}, nil
}

func (s *rawSession) login(user, pass string) error {
	if _, _, err := s.command(331, "USER %s", user); err != nil {
		return err
	}
	if _, _, err := s.command(230, "PASS %s", pass); err != nil {
		return err
	}
	return nil
}

// command sends verb and reads the (possibly multi-line) response,
// returning an error unless the reply code equals expected. Only login
// calls it, since each login step has one specific success code; other
// callers use sendCommand below.
func (s *rawSession) command(expected int, format string, args ...any) (int, string, error) {
	id, err := s.conn.Cmd(format, args...)
	if err != nil {
		return 0, "", &TransportError{Op: "cmd", Path: format, Err: err}
	}
	s.conn.StartResponse(id)
	defer s.conn.EndResponse(id)
	code, msg, err := s.conn.ReadResponse(expected)
	if err != nil {
		return code, msg, &TransportError{Op: "cmd", Path: format, Err: err}
	}
	return code, msg, nil
}

// sendCommand issues verb [arg] and returns the full response text
// regardless of status code, for the batch mode escape hatch and for
// FEAT probing, neither of which has one single expected success code.
func (s *rawSession) sendCommand(verb, arg string) (string, error) {
	cmd := verb
	if arg != "" {
		cmd = fmt.Sprintf("%s %s", verb, arg)
	}
	id, err := s.conn.Cmd("%s", cmd)
	if err != nil {
		return "", &TransportError{Op: "cmd", Path: cmd, Err: err}
	}
	s.conn.StartResponse(id)
	defer s.conn.EndResponse(id)

	// Any status code is a valid FTP response for an arbitrary command;
	// only a connection-level failure (not a *textproto.Error) is fatal.
	_, msg, err := s.conn.ReadResponse(1)
	var protoErr *textproto.Error
	if err != nil && !errors.As(err, &protoErr) {
		return "", &TransportError{Op: "cmd", Path: cmd, Err: err}
	}
	if protoErr != nil {
		msg = protoErr.Msg
	}
	return msg, nil
}

func (s *rawSession) close() error {
	return s.nc.Close()
}
