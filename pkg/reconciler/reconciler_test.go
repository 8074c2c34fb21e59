package reconciler

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/ignore"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
	"github.com/arkhold/ftpvault/pkg/walker"
)

type fakeSession struct {
	label     string
	listings  map[string][]ftpclient.Entry
	listErrs  map[string]error
	downloads map[string]uint32
	log       *[]string
}

func (f *fakeSession) List(dirPath string) ([]ftpclient.Entry, bool, error) {
	if err, ok := f.listErrs[dirPath]; ok {
		delete(f.listErrs, dirPath) // fail once
		return nil, false, err
	}
	return f.listings[dirPath], true, nil
}
func (f *fakeSession) Chdir(path string) error           { return nil }
func (f *fakeSession) Cdup() error                       { return nil }
func (f *fakeSession) Login(user, password string) error { return nil }

func (f *fakeSession) Download(remotePath, localPath string) (uint32, error) {
	if f.log != nil {
		*f.log = append(*f.log, f.label+":"+remotePath)
	}
	if err := os.MkdirAll(parentDir(localPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(localPath, []byte(remotePath), 0o644); err != nil {
		return 0, err
	}
	return f.downloads[remotePath], nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[:i]
		}
	}
	return "."
}

func TestReconcileAddedFileEmitsHistoryAndArchive(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt", ModifyDate: "20260101000000"}},
		},
		downloads: map[string]uint32{"/a.txt": 111},
	}
	port := persistence.NewMemory()
	r := New(port, session, ignore.Compile(nil), nil, t.TempDir())

	result, err := r.Run(context.Background(), 1, "/", 1000)
	require.NoError(t, err)
	require.True(t, result.HasChanges)
	require.NotEmpty(t, result.ArchivePath)
	require.FileExists(t, result.ArchivePath)

	tree, err := port.LoadCurrentTree(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, uint32(111), tree[0].CRC32)
}

func TestReconcileUnchangedFileProducesNoChanges(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt", ModifyDate: "20260101000000"}},
		},
		downloads: map[string]uint32{"/a.txt": 111},
	}
	port := persistence.NewMemory()
	r := New(port, session, ignore.Compile(nil), nil, t.TempDir())

	_, err := r.Run(context.Background(), 1, "/", 1000)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), 1, "/", 2000)
	require.NoError(t, err)
	require.False(t, result.HasChanges)
	require.Empty(t, result.ArchivePath)
}

func TestReconcileMtimeMismatchSameCRCIsNoop(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt", ModifyDate: "20260101000000"}},
		},
		downloads: map[string]uint32{"/a.txt": 111},
	}
	port := persistence.NewMemory()
	r := New(port, session, ignore.Compile(nil), nil, t.TempDir())

	_, err := r.Run(context.Background(), 1, "/", 1000)
	require.NoError(t, err)

	// Same CRC, but server reports a new mtime.
	session.listings["/"][0].ModifyDate = "20260102000000"
	result, err := r.Run(context.Background(), 1, "/", 2000)
	require.NoError(t, err)
	require.False(t, result.HasChanges)
}

func TestReconcileListModeWithoutMDTMAlwaysFallsThroughToCRC(t *testing.T) {
	// No ModifyDate set: simulates a LIST-only server with no MDTM support.
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt"}},
		},
		downloads: map[string]uint32{"/a.txt": 111},
	}
	port := persistence.NewMemory()
	r := New(port, session, ignore.Compile(nil), nil, t.TempDir())

	_, err := r.Run(context.Background(), 1, "/", 1000)
	require.NoError(t, err)

	// Content genuinely changed, but the server still reports no mtime.
	session.downloads["/a.txt"] = 222
	result, err := r.Run(context.Background(), 1, "/", 2000)
	require.NoError(t, err)
	require.True(t, result.HasChanges, "differing generation timestamps must defeat the mtime short-circuit")

	tree, err := port.LoadCurrentTree(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, uint32(222), tree[0].CRC32)
	require.Equal(t, model.TimePoint(2000).String(), tree[0].ModifyDate)
}

func TestReconcileDownloadsThroughReconnectedSessionAfterTransportFailure(t *testing.T) {
	var log []string
	original := &fakeSession{
		label: "original",
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt", ModifyDate: "20260101000000"}},
		},
		listErrs: map[string]error{"/": errors.New("connection reset")},
		log:      &log,
	}
	replacement := &fakeSession{
		label: "replacement",
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt", ModifyDate: "20260101000000"}},
		},
		downloads: map[string]uint32{"/a.txt": 111},
		log:       &log,
	}

	reconnectCalls := 0
	reconnect := func() (walker.Session, error) {
		reconnectCalls++
		return replacement, nil
	}

	port := persistence.NewMemory()
	r := New(port, original, ignore.Compile(nil), reconnect, t.TempDir())

	result, err := r.Run(context.Background(), 1, "/", 1000)
	require.NoError(t, err)
	require.Equal(t, 1, reconnectCalls)
	require.True(t, result.HasChanges)
	require.Equal(t, []string{"replacement:/a.txt"}, log, "download must go through the post-reconnect session, never the dead one")

	tree, err := port.LoadCurrentTree(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, uint32(111), tree[0].CRC32)
}

func TestReconcileDeletedFileEmitsHistory(t *testing.T) {
	session := &fakeSession{
		listings: map[string][]ftpclient.Entry{
			"/": {{Name: "a.txt", FullName: "/a.txt", ModifyDate: "20260101000000"}},
		},
		downloads: map[string]uint32{"/a.txt": 111},
	}
	port := persistence.NewMemory()
	r := New(port, session, ignore.Compile(nil), nil, t.TempDir())

	_, err := r.Run(context.Background(), 1, "/", 1000)
	require.NoError(t, err)

	session.listings["/"] = nil
	result, err := r.Run(context.Background(), 1, "/", 2000)
	require.NoError(t, err)
	require.True(t, result.HasChanges)
	require.Empty(t, result.ArchivePath) // deletion alone packs nothing

	tree, err := port.LoadCurrentTree(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, tree)
}
