// Package scheduler implements the Scheduler (C8): one worker per site,
// run concurrently, each driving the Reconciler pipeline end to end
// (§4.8). All workers of one invocation share a single TimePoint,
// assigned once at process start (§3 "TimePoint").
package scheduler

import (
	"context"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkhold/ftpvault/internal/logger"
	"github.com/arkhold/ftpvault/pkg/ftpclient"
	"github.com/arkhold/ftpvault/pkg/ignore"
	"github.com/arkhold/ftpvault/pkg/metrics"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
	"github.com/arkhold/ftpvault/pkg/reconciler"
	"github.com/arkhold/ftpvault/pkg/walker"
)

// Dialer opens one authenticated session for site. The concrete
// implementation wraps an *ftpclient.Factory; tests supply a fake so
// Scheduler.Run can be exercised without a real FTP server.
type Dialer interface {
	Dial(site model.Site) (reconciler.Session, error)
}

// factoryDialer adapts an *ftpclient.Factory into a Dialer, handling
// per-site login on top of the factory's shared connection parsing.
type factoryDialer struct {
	factory *ftpclient.Factory
}

func (d *factoryDialer) Dial(site model.Site) (reconciler.Session, error) {
	client, err := d.factory.Dial()
	if err != nil {
		return nil, err
	}
	if err := client.Login(site.Login, site.Password); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Scheduler owns the shared Persistence Port and Listing-Client factory
// and fans a generation out across every configured site.
type Scheduler struct {
	port       persistence.Port
	dialer     Dialer
	backupRoot string
	metrics    *metrics.Metrics
}

// New creates a Scheduler. m may be nil (metrics disabled).
func New(port persistence.Port, factory *ftpclient.Factory, backupRoot string, m *metrics.Metrics) *Scheduler {
	return &Scheduler{port: port, dialer: &factoryDialer{factory: factory}, backupRoot: backupRoot, metrics: m}
}

// NewWithDialer creates a Scheduler against a caller-supplied Dialer,
// used by tests to avoid a real FTP connection.
func NewWithDialer(port persistence.Port, dialer Dialer, backupRoot string, m *metrics.Metrics) *Scheduler {
	return &Scheduler{port: port, dialer: dialer, backupRoot: backupRoot, metrics: m}
}

// Run executes one generation across every site. Per §4.8, a worker's
// failure does not cancel its siblings: plain errgroup.Group (no shared
// context) is used deliberately so one site's transport failure never
// reaches another site's in-flight session.
func (s *Scheduler) Run(ctx context.Context) error {
	sites, err := s.port.LoadSites(ctx)
	if err != nil {
		return err
	}

	timePoint := model.Now()
	logger.Info("scheduler: starting generation", logger.KeyTimePoint, timePoint)

	var g errgroup.Group
	for _, site := range sites {
		site := site
		g.Go(func() error {
			s.runSite(ctx, site, timePoint)
			return nil
		})
	}

	return g.Wait()
}

// runSite drives one site's worker. Errors are logged and swallowed
// here rather than propagated, which is what makes sibling isolation
// hold even if a caller later switches to errgroup.WithContext.
func (s *Scheduler) runSite(ctx context.Context, site model.Site, timePoint model.TimePoint) {
	start := time.Now()

	session, err := s.dialer.Dial(site)
	if err != nil {
		logger.Error("scheduler: dial failed", logger.KeySite, site.ID, logger.KeyError, err.Error())
		s.observeOutcome(site.ID, "failed", start)
		return
	}
	defer closeSession(session)

	ignores, err := s.port.LoadIgnores(ctx, site.ID)
	if err != nil {
		logger.Error("scheduler: load ignores failed", logger.KeySite, site.ID, logger.KeyError, err.Error())
		s.observeOutcome(site.ID, "failed", start)
		return
	}
	filter := ignore.Compile(ignores)

	reconnect := func() (walker.Session, error) {
		logger.Warn("scheduler: reconnecting", logger.KeySite, site.ID)
		s.metrics.RecordReconnect(siteLabel(site.ID))
		return s.dialer.Dial(site)
	}

	r := reconciler.New(s.port, session, filter, reconnect, s.backupRoot)
	result, err := r.Run(ctx, site.ID, "/", timePoint)
	if err != nil {
		logger.Error("scheduler: generation failed", logger.KeySite, site.ID, logger.KeyError, err.Error())
		s.observeOutcome(site.ID, "failed", start)
		return
	}

	outcome := "up_to_date"
	if result.HasChanges {
		outcome = "changed"
		logger.Info("scheduler: generation complete", logger.KeySite, site.ID, logger.KeyTimePoint, timePoint, logger.KeyArchive, result.ArchivePath)
	} else {
		logger.Info("scheduler: site up to date", logger.KeySite, site.ID)
	}
	s.observeOutcome(site.ID, outcome, start)
}

func closeSession(session reconciler.Session) {
	if closer, ok := session.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (s *Scheduler) observeOutcome(siteID uint64, outcome string, start time.Time) {
	s.metrics.ObserveGeneration(siteLabel(siteID), outcome, time.Since(start))
}

func siteLabel(siteID uint64) string {
	return strconv.FormatUint(siteID, 10)
}
