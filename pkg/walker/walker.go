// Package walker implements the Tree Walker (C4): a recursive,
// ignore-aware depth-first traversal of an FTP site, with a one-shot
// reconnect-and-resume protocol for transport failures (§4.4).
package walker

import (
	"github.com/arkhold/ftpvault/internal/logger"
	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/ignore"
)

// Session is the subset of ftpclient.Client the walker drives. It is
// declared here, not in ftpclient, so tests can script a fake without
// standing up a real FTP session.
type Session interface {
	List(dirPath string) ([]ftpclient.Entry, bool, error)
	Chdir(path string) error
	Cdup() error
	Login(user, password string) error
}

// Reconnector redials and re-logs-in a fresh Session after a transport
// failure, used only by the one-shot reconnect path.
type Reconnector func() (Session, error)

// Walker performs the recursive traversal and emits every entry it
// sees via the given sink.
type Walker struct {
	session     Session
	filter      *ignore.Filter
	reconnect   Reconnector
	reconnected bool
}

// New creates a Walker bound to session, applying filter at traversal
// time and using reconnect to recover from transport failures: each
// failed directory read gets one reconnect-and-retry, and a failure
// inside that retried subtree propagates.
func New(session Session, filter *ignore.Filter, reconnect Reconnector) *Walker {
	return &Walker{session: session, filter: filter, reconnect: reconnect}
}

// Walk traverses from root, calling emit for every entry encountered
// whose extension is not ignored (files and directories alike);
// directories are recursed into after being emitted. A directory whose
// path is ignored is still emitted, but its contents are not listed.
func (w *Walker) Walk(root string, emit func(ftpclient.Entry)) error {
	w.reconnected = false
	return w.walk(root, emit, false)
}

func (w *Walker) walk(path string, emit func(ftpclient.Entry), stopOnFail bool) error {
	if w.filter.MatchesPath(path) {
		return nil
	}

	if path != "/" && path != "" {
		if err := w.session.Chdir(lastComponent(path)); err != nil {
			return w.handleTransportFailure(path, emit, stopOnFail, err)
		}
		defer func() { _ = w.session.Cdup() }()
	}

	entries, _, err := w.session.List(path)
	if err != nil {
		return w.handleTransportFailure(path, emit, stopOnFail, err)
	}

	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.FullName == "" {
			logger.Warn("walker: empty entry name, skipping", "path", path)
			continue
		}
		if w.filter.MatchesExt(e.FullName) {
			continue
		}

		emit(e)

		if e.IsDir {
			if err := w.walk(e.FullName, emit, stopOnFail); err != nil {
				return err
			}
		}
	}

	return nil
}

// handleTransportFailure implements the one-shot reconnect-and-resume
// protocol (§4.4): on the first failure it redials, re-navigates to
// path component by component, and retries with stopOnFail=true so a
// second failure propagates instead of looping.
func (w *Walker) handleTransportFailure(path string, emit func(ftpclient.Entry), stopOnFail bool, cause error) error {
	if stopOnFail || w.reconnect == nil {
		return cause
	}

	logger.Warn("walker: transport failure, reconnecting once", logger.KeyPath, path, logger.KeyError, cause.Error())

	session, err := w.reconnect()
	if err != nil {
		return cause
	}
	w.session = session
	w.reconnected = true

	for _, component := range splitComponents(path) {
		if err := w.session.Chdir(component); err != nil {
			return cause
		}
	}

	return w.walk(path, emit, true)
}

// Reconnected reports whether the one-shot reconnect path fired during
// the most recent Walk call.
func (w *Walker) Reconnected() bool { return w.reconnected }

// Session returns the session the walker is currently driving: the one
// passed to New, or its replacement after a one-shot reconnect. Callers
// that need a capability beyond walker.Session (e.g. downloading bytes)
// must fetch it through here rather than holding their own reference,
// so they follow the walker across a reconnect instead of talking to
// the dead connection it left behind.
func (w *Walker) Session() Session { return w.session }

func lastComponent(path string) string {
	components := splitComponents(path)
	if len(components) == 0 {
		return path
	}
	return components[len(components)-1]
}

func splitComponents(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}
