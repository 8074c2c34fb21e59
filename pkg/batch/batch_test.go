package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
)

func TestParseCommandsSplitsVerbAndArg(t *testing.T) {
	cmds, err := ParseCommands("noop,site:chmod 755 a.txt, PWD")
	require.NoError(t, err)
	require.Equal(t, []Command{
		{Verb: "NOOP", Arg: ""},
		{Verb: "SITE", Arg: "chmod 755 a.txt"},
		{Verb: "PWD", Arg: ""},
	}, cmds)
}

func TestParseCommandsRejectsEmptySpec(t *testing.T) {
	_, err := ParseCommands("   ")
	require.Error(t, err)
}

type fakeSession struct {
	logins    int
	responses map[string]string
	failVerb  string
}

func (f *fakeSession) Login(user, password string) error {
	f.logins++
	return nil
}

func (f *fakeSession) SendCommand(verb, arg string) (string, error) {
	if verb == f.failVerb {
		return "", errors.New("boom")
	}
	return f.responses[verb], nil
}

type fakeDialer struct {
	sessions []*fakeSession
	next     int
}

func (d *fakeDialer) Dial() (Session, error) {
	if d.next >= len(d.sessions) {
		return nil, errors.New("no more sessions")
	}
	s := d.sessions[d.next]
	d.next++
	return s, nil
}

func TestRunIssuesCommandsPerSite(t *testing.T) {
	port := persistence.NewMemory()
	port.SeedSite(model.Site{ID: 1, Login: "a", Password: "pw"}, nil)
	port.SeedSite(model.Site{ID: 2, Login: "b", Password: "pw"}, nil)

	s1 := &fakeSession{responses: map[string]string{"PWD": "/home/a"}}
	s2 := &fakeSession{responses: map[string]string{"PWD": "/home/b"}}
	dialer := &fakeDialer{sessions: []*fakeSession{s1, s2}}

	r := New(port, dialer)
	cmds, err := ParseCommands("PWD")
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), cmds))
	require.Equal(t, 1, s1.logins)
	require.Equal(t, 1, s2.logins)
}

func TestRunContinuesAfterDialFailure(t *testing.T) {
	port := persistence.NewMemory()
	port.SeedSite(model.Site{ID: 1}, nil)
	port.SeedSite(model.Site{ID: 2}, nil)

	dialer := &fakeDialer{sessions: []*fakeSession{{responses: map[string]string{"PWD": "/"}}}} // only one session available

	r := New(port, dialer)
	cmds, err := ParseCommands("PWD")
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), cmds))
}
