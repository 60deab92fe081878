package report

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pr-snapshot/internal/archive"
	"pr-snapshot/internal/config"
	"pr-snapshot/internal/github"
	"pr-snapshot/internal/googlechat"
	"pr-snapshot/internal/jira"
	"pr-snapshot/internal/slack"
)

const githubTimeout = 60 * time.Second

// NewFromConfig validates the secrets and wires a Runner from configuration.
// Validation happens before any client is built, so a missing secret never
// reaches the network.
func NewFromConfig(ctx context.Context, cfg *config.Config, runID string, log logrus.FieldLogger) (*Runner, error) {
	if err := cfg.ValidateReport(); err != nil {
		return nil, err
	}

	source, err := NewSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	primary, err := googlechat.NewClient(googlechat.Config{
		WebhookURL: cfg.GoogleChat.WebhookURL,
		Timeout:    cfg.GoogleChat.Timeout,
		RetryLimit: cfg.GoogleChat.RetryLimit,
	})
	if err != nil {
		return nil, err
	}

	runner := &Runner{
		Source:  source,
		Primary: primary,
		Log:     log,
	}
	if cfg.SingleRepo() {
		runner.Repos = []github.Repo{{Owner: cfg.RepoOwner, Name: cfg.RepoName}}
	}

	if cfg.Jira.Enabled() {
		tickets, err := jira.NewClient(jira.Options{
			URL:      cfg.Jira.URL,
			Username: cfg.Jira.Username,
			APIToken: cfg.Jira.APIToken,
			UsePAT:   cfg.Jira.UsePAT,
		}, log)
		if err != nil {
			log.WithError(err).Warn("JIRA enrichment disabled")
		} else {
			runner.Tickets = tickets
		}
	}

	if cfg.Slack.Enabled() {
		mirror, err := slack.NewClient(slack.Options{
			Token:        cfg.Slack.Token,
			Channel:      cfg.Slack.Channel,
			TeamGroup:    cfg.Slack.TeamGroup,
			MentionUsers: cfg.Slack.MentionUsers,
		}, log)
		if err != nil {
			return nil, err
		}
		runner.Mirrors = append(runner.Mirrors, mirror)
	}

	if cfg.Archive.Enabled() {
		store, err := archive.New(ctx, archive.Options{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
			Region: cfg.Archive.Region,
			RunID:  runID,
		})
		if err != nil {
			log.WithError(err).Warn("Report archive disabled")
		} else {
			runner.Mirrors = append(runner.Mirrors, store)
		}
	}

	return runner, nil
}

// NewSource builds the GitHub source. In debug mode it also verifies the token.
func NewSource(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*github.Client, error) {
	source, err := github.NewClient(ctx, github.Options{
		Token:         cfg.GithubToken,
		BaseURL:       cfg.GithubAPIURL,
		TicketPattern: cfg.Jira.TicketPattern,
		Timeout:       githubTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	if cfg.DebugMode {
		login, err := source.VerifyAuth(ctx)
		if err != nil {
			return nil, err
		}
		log.Debugf("Authenticated as GitHub user: %s", login)
	}

	return source, nil
}

// Describe returns the sink names a runner will deliver to, for logging.
func (r *Runner) Describe() string {
	names := ""
	if r.Primary != nil {
		names = r.Primary.Name()
	}
	for _, m := range r.Mirrors {
		names += ", " + m.Name()
	}
	return fmt.Sprintf("sinks: %s", names)
}
