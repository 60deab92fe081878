// Package report runs one PR snapshot: collect activity from GitHub, enrich it
// with ticket status, compute the snapshot, and deliver it to the sinks.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pr-snapshot/internal/github"
	"pr-snapshot/internal/jira"
	"pr-snapshot/internal/snapshot"
)

// Source provides repository activity.
type Source interface {
	ListRepos(ctx context.Context) ([]github.Repo, error)
	CollectRepo(ctx context.Context, repo github.Repo, since time.Time) (*github.RepoActivity, error)
}

// TicketSource resolves ticket keys found in PR titles.
type TicketSource interface {
	FetchTicketsInfo(ctx context.Context, ticketIDs []string) map[string]*jira.TicketInfo
}

// Sink is a destination for the rendered report.
type Sink interface {
	Name() string
	Send(ctx context.Context, text string) error
}

var (
	// ErrNoPrimarySink is returned by Run when no delivery target is configured.
	ErrNoPrimarySink = errors.New("no primary sink configured")
	// ErrNoReadableRepos is returned when every repository in scope was skipped.
	ErrNoReadableRepos = errors.New("no repository could be read")
)

// Runner executes report runs. Primary delivery failures fail the run;
// mirror failures are logged.
type Runner struct {
	Source  Source
	Tickets TicketSource
	Primary Sink
	Mirrors []Sink
	// Repos restricts the scope; empty means every repository visible to the token.
	Repos []github.Repo
	Now   func() time.Time
	Log   logrus.FieldLogger
}

// Build collects activity and renders the report without delivering it.
func (r *Runner) Build(ctx context.Context) (string, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.Markdown(), nil
}

// Snapshot collects activity and computes the metrics.
func (r *Runner) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	now := r.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	repos := r.Repos
	fixedScope := len(repos) > 0
	if !fixedScope {
		var err error
		repos, err = r.Source.ListRepos(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing repositories: %w", err)
		}
		if len(repos) == 0 {
			r.Log.Warn("No repositories visible to the token, the report will be empty")
		}
	}

	var activities []*github.RepoActivity
	skipped := 0
	for _, repo := range repos {
		activity, err := r.Source.CollectRepo(ctx, repo, since)
		if err != nil {
			if !fixedScope && errors.Is(err, github.ErrListPullRequests) {
				r.Log.WithError(err).Warnf("Skipping repository %s", repo)
				skipped++
				continue
			}
			return nil, fmt.Errorf("error collecting %s: %w", repo, err)
		}
		r.Log.Debugf("Collected %s: %d open, %d recently closed", repo, len(activity.Open), len(activity.Closed))
		activities = append(activities, activity)
	}
	if skipped > 0 && skipped == len(repos) {
		return nil, fmt.Errorf("%w: all %d repositories failed to list", ErrNoReadableRepos, skipped)
	}

	opts := snapshot.Options{BlockedTickets: r.blockedTickets(ctx, activities)}
	return snapshot.Compute(activities, now, opts), nil
}

// Run builds the report and delivers it.
func (r *Runner) Run(ctx context.Context) error {
	if r.Primary == nil {
		return ErrNoPrimarySink
	}

	r.Log.Info("Starting PR report generation...")

	text, err := r.Build(ctx)
	if err != nil {
		return err
	}

	if err := r.Primary.Send(ctx, text); err != nil {
		return fmt.Errorf("error sending report to %s: %w", r.Primary.Name(), err)
	}
	r.Log.Infof("PR report sent to %s", r.Primary.Name())

	for _, sink := range r.Mirrors {
		if err := sink.Send(ctx, text); err != nil {
			r.Log.WithError(err).Warnf("Could not deliver report to %s", sink.Name())
			continue
		}
		r.Log.Infof("PR report sent to %s", sink.Name())
	}

	return nil
}

func (r *Runner) blockedTickets(ctx context.Context, activities []*github.RepoActivity) map[string]bool {
	if r.Tickets == nil {
		return nil
	}

	var ids []string
	for _, activity := range activities {
		for _, pr := range activity.Open {
			if pr.JiraTicket != "" {
				ids = append(ids, pr.JiraTicket)
			}
		}
	}
	if len(ids) == 0 {
		r.Log.Debug("No JIRA tickets found in any open PRs, skipping JIRA integration")
		return nil
	}

	r.Log.Infof("Fetching JIRA info for %d tickets", len(ids))
	return jira.BlockedTickets(r.Tickets.FetchTicketsInfo(ctx, ids))
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
