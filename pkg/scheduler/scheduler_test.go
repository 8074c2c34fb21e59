package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
	"github.com/arkhold/ftpvault/pkg/reconciler"
)

// fakeClient implements reconciler.Session for one site; it returns a
// single, fixed listing that never changes between calls, so a run
// produces exactly one Added file then settles to up-to-date.
type fakeClient struct {
	listing []ftpclient.Entry
}

func (c *fakeClient) List(dirPath string) ([]ftpclient.Entry, bool, error) {
	if dirPath == "/" {
		return c.listing, true, nil
	}
	return nil, true, nil
}
func (c *fakeClient) Chdir(path string) error                              { return nil }
func (c *fakeClient) Cdup() error                                          { return nil }
func (c *fakeClient) Login(user, password string) error                   { return nil }
func (c *fakeClient) Download(remotePath, localPath string) (uint32, error) {
	return 42, nil
}

type fakeDialer struct {
	mu    sync.Mutex
	calls int
	byID  map[uint64]*fakeClient
}

func (d *fakeDialer) Dial(site model.Site) (reconciler.Session, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.byID[site.ID], nil
}

func TestRunDrivesEverySiteConcurrently(t *testing.T) {
	port := persistence.NewMemory()
	port.SeedSite(model.Site{ID: 1, Login: "a"}, nil)
	port.SeedSite(model.Site{ID: 2, Login: "b"}, nil)

	dialer := &fakeDialer{byID: map[uint64]*fakeClient{
		1: {listing: []ftpclient.Entry{{Name: "a.txt", FullName: "/a.txt", ModifyDate: "t1"}}},
		2: {listing: []ftpclient.Entry{{Name: "b.txt", FullName: "/b.txt", ModifyDate: "t1"}}},
	}}

	s := NewWithDialer(port, dialer, t.TempDir(), nil)
	err := s.Run(context.Background())
	require.NoError(t, err)

	tree1, err := port.LoadCurrentTree(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tree1, 1)

	tree2, err := port.LoadCurrentTree(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, tree2, 1)
}

type failingDialer struct{}

func (failingDialer) Dial(site model.Site) (reconciler.Session, error) {
	return nil, errors.New("dial refused")
}

func TestRunSwallowsPerSiteFailures(t *testing.T) {
	port := persistence.NewMemory()
	port.SeedSite(model.Site{ID: 1}, nil)

	s := NewWithDialer(port, failingDialer{}, t.TempDir(), nil)

	var err error
	require.NotPanics(t, func() {
		err = s.Run(context.Background())
	})
	require.NoError(t, err)
}
