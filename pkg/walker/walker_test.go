package walker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/ignore"
	"github.com/arkhold/ftpvault/pkg/model"
)

type fakeSession struct {
	listings  map[string][]ftpclient.Entry
	listErrs  map[string]error
	chdirErrs map[string]error
}

func (f *fakeSession) List(dirPath string) ([]ftpclient.Entry, bool, error) {
	if err, ok := f.listErrs[dirPath]; ok {
		delete(f.listErrs, dirPath) // fail once
		return nil, false, err
	}
	return f.listings[dirPath], true, nil
}

func (f *fakeSession) Chdir(path string) error {
	return f.chdirErrs[path]
}

func (f *fakeSession) Cdup() error { return nil }

func (f *fakeSession) Login(user, password string) error { return nil }

func TestWalkEmitsEntriesAndRecurses(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {
				{Name: "dir", FullName: "/dir", IsDir: true},
				{Name: "file.txt", FullName: "/file.txt"},
			},
			"/dir": {
				{Name: "nested.txt", FullName: "/dir/nested.txt"},
			},
		},
	}
	w := New(session, ignore.Compile(nil), nil)

	var seen []string
	require.NoError(t, w.Walk("/", func(e ftpclient.Entry) { seen = append(seen, e.FullName) }))

	require.ElementsMatch(t, []string{"/dir", "/file.txt", "/dir/nested.txt"}, seen)
}

func TestWalkSkipsIgnoredPath(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/":       {{Name: "secret", FullName: "/secret", IsDir: true}},
			"/secret": {{Name: "inner.txt", FullName: "/secret/inner.txt"}},
		},
	}
	filter := ignore.Compile([]model.Ignore{{Attribute: model.IgnorePath, Operand: "/secret"}})
	w := New(session, filter, nil)

	var seen []string
	require.NoError(t, w.Walk("/", func(e ftpclient.Entry) { seen = append(seen, e.FullName) }))

	// The ignored directory itself is listed by its parent; nothing under it is.
	require.Equal(t, []string{"/secret"}, seen)
}

func TestWalkReconnectsOnceOnTransportFailure(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "file.txt", FullName: "/file.txt"}},
		},
		listErrs: map[string]error{"/": errors.New("connection reset")},
	}
	reconnectCalls := 0
	w := New(session, ignore.Compile(nil), func() (Session, error) {
		reconnectCalls++
		return session, nil
	})

	var seen []string
	require.NoError(t, w.Walk("/", func(e ftpclient.Entry) { seen = append(seen, e.FullName) }))

	require.Equal(t, 1, reconnectCalls)
	require.True(t, w.Reconnected())
	require.Equal(t, []string{"/file.txt"}, seen)
}

func TestWalkSessionTracksReconnectSwap(t *testing.T) {
	original := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "file.txt", FullName: "/file.txt"}},
		},
		listErrs: map[string]error{"/": errors.New("connection reset")},
	}
	replacement := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "file.txt", FullName: "/file.txt"}},
		},
	}
	w := New(original, ignore.Compile(nil), func() (Session, error) {
		return replacement, nil
	})

	require.Same(t, original, w.Session())
	require.NoError(t, w.Walk("/", func(ftpclient.Entry) {}))
	require.Same(t, replacement, w.Session(), "Session() must return the post-reconnect session, not the dead one")
}

func TestWalkPropagatesFailureWhenReconnectFails(t *testing.T) {
	session := &fakeSession{
		listErrs: map[string]error{"/": errors.New("gone")},
	}
	w := New(session, ignore.Compile(nil), func() (Session, error) {
		return nil, errors.New("redial failed")
	})

	err := w.Walk("/", func(ftpclient.Entry) {})
	require.Error(t, err)
}
