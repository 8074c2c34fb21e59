package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkhold/ftpvault/pkg/config"
	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
)

func TestParseRestoreSpecParsesSiteIDAndLocalTime(t *testing.T) {
	siteID, target, err := parseRestoreSpec("7:2026-01-15T10:30:00")
	require.NoError(t, err)
	require.Equal(t, uint64(7), siteID)

	local, _ := time.ParseInLocation("2006-01-02T15:04:05", "2026-01-15T10:30:00", time.Local)
	require.True(t, target.Equal(local.UTC()))
	require.Equal(t, time.UTC, target.Location())
}

func TestParseRestoreSpecRejectsMissingColon(t *testing.T) {
	_, _, err := parseRestoreSpec("2026-01-15T10:30:00")
	require.Error(t, err)
}

func TestParseRestoreSpecRejectsBadSiteID(t *testing.T) {
	_, _, err := parseRestoreSpec("abc:2026-01-15T10:30:00")
	require.Error(t, err)
}

func TestParseRestoreSpecRejectsBadDatetime(t *testing.T) {
	_, _, err := parseRestoreSpec("7:not-a-date")
	require.Error(t, err)
}

func TestVersionStringIncludesCommitAndDate(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	defer func() { Version, Commit, Date = oldVersion, oldCommit, oldDate }()

	Version, Commit, Date = "1.2.3", "abc1234", "2026-01-15"
	require.Equal(t, "1.2.3 (commit: abc1234, built: 2026-01-15)", versionString())
}

func TestFindSiteReturnsMatchOrFalse(t *testing.T) {
	sites := []model.Site{{ID: 1, Login: "one"}, {ID: 2, Login: "two"}}

	site, found := findSite(sites, 2)
	require.True(t, found)
	require.Equal(t, "two", site.Login)

	_, found = findSite(sites, 999)
	require.False(t, found)
}

func TestRunRestoreOnUnknownSiteIDLogsAndExitsClean(t *testing.T) {
	store := persistence.NewMemory()
	factory := ftpclient.NewFactory("ftp://unreachable.invalid:21", time.Second)
	cfg := &config.Config{}

	err := runRestore(context.Background(), store, factory, cfg, "999:2026-01-15T10:30:00")
	require.NoError(t, err, "unknown site id must log and exit 0, per §7's NotFound handling, not fail by dialing an empty login")
}

func TestRootFlagsAreRegistered(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.Equal(t, "c", rootCmd.PersistentFlags().Lookup("config").Shorthand)

	require.NotNil(t, rootCmd.Flags().Lookup("restore"))
	require.Equal(t, "r", rootCmd.Flags().Lookup("restore").Shorthand)

	require.NotNil(t, rootCmd.Flags().Lookup("batch"))
	require.Equal(t, "b", rootCmd.Flags().Lookup("batch").Shorthand)

	require.NotNil(t, rootCmd.Flags().Lookup("version"))
	require.Equal(t, "v", rootCmd.Flags().Lookup("version").Shorthand)
}
