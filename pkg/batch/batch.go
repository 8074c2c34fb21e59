// Package batch implements the -b/--batch escape hatch (§6): instead of
// running a backup generation, issue a fixed list of raw FTP commands
// against every configured site and log each response.
package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/arkhold/ftpvault/internal/logger"
	"github.com/arkhold/ftpvault/pkg/model"
	"github.com/arkhold/ftpvault/pkg/persistence"
)

// Command is one parsed batch verb, with an optional argument.
type Command struct {
	Verb string
	Arg  string
}

// ParseCommands parses the -b/--batch flag value:
// "cmd1[:arg][,cmd2[:arg]...]".
func ParseCommands(spec string) ([]Command, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("batch: empty command list")
	}

	parts := strings.Split(spec, ",")
	commands := make([]Command, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		verb, arg, _ := strings.Cut(part, ":")
		verb = strings.ToUpper(strings.TrimSpace(verb))
		if verb == "" {
			return nil, fmt.Errorf("batch: empty command in %q", spec)
		}
		commands = append(commands, Command{Verb: verb, Arg: strings.TrimSpace(arg)})
	}

	if len(commands) == 0 {
		return nil, fmt.Errorf("batch: no commands parsed from %q", spec)
	}
	return commands, nil
}

// Session is the subset of ftpclient.Client batch mode needs: login plus
// the raw-command escape hatch.
type Session interface {
	Login(user, password string) error
	SendCommand(verb, arg string) (string, error)
}

// Dialer opens one Session per site, mirroring pkg/scheduler.Dialer.
type Dialer interface {
	Dial() (Session, error)
}

// Runner drives batch mode across every configured site.
type Runner struct {
	port   persistence.Port
	dialer Dialer
}

// New creates a Runner.
func New(port persistence.Port, dialer Dialer) *Runner {
	return &Runner{port: port, dialer: dialer}
}

// Run issues every command against every site in turn, logging each
// response. A site that fails to dial or log in is logged and skipped;
// the remaining sites still run (same per-site isolation as §4.8's
// Scheduler).
func (r *Runner) Run(ctx context.Context, commands []Command) error {
	sites, err := r.port.LoadSites(ctx)
	if err != nil {
		return err
	}

	for _, site := range sites {
		r.runSite(site, commands)
	}
	return nil
}

func (r *Runner) runSite(site model.Site, commands []Command) {
	session, err := r.dialer.Dial()
	if err != nil {
		logger.Error("batch: dial failed", logger.KeySite, site.ID, logger.KeyError, err.Error())
		return
	}

	if err := session.Login(site.Login, site.Password); err != nil {
		logger.Error("batch: login failed", logger.KeySite, site.ID, logger.KeyError, err.Error())
		return
	}

	for _, cmd := range commands {
		resp, err := session.SendCommand(cmd.Verb, cmd.Arg)
		if err != nil {
			logger.Error("batch: command failed", logger.KeySite, site.ID, "verb", cmd.Verb, "arg", cmd.Arg, logger.KeyError, err.Error())
			continue
		}
		logger.Info("batch: command response", logger.KeySite, site.ID, "verb", cmd.Verb, "arg", cmd.Arg, "response", resp)
	}
}
