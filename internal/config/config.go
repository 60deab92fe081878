// Package config loads the reporter settings from the process environment.
//
// Values are read from a .env file when one exists (local runs) and then from
// the environment using github.com/caarlos0/env. In CI the two secrets are
// injected by the workflow and no .env file is present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Configuration errors. They are returned before any network call is made.
var (
	ErrMissingToken   = errors.New("GITHUB_TOKEN is not set")
	ErrMissingWebhook = errors.New("GOOGLE_CHAT_WEBHOOK is not set")
	ErrInvalidWebhook = errors.New("GOOGLE_CHAT_WEBHOOK is not a valid http(s) URL")
	ErrMissingRepo    = errors.New("REPO_OWNER and REPO_NAME must both be set")
)

const (
	defaultTicketPattern = `[A-Z][A-Z0-9]+-\d+`
	defaultArchivePrefix = "pr-snapshots"
	defaultArchiveRegion = "us-east-1"
)

// Config holds all reporter settings.
type Config struct {
	// GitHub
	GithubToken  string `env:"GITHUB_TOKEN"`
	GithubAPIURL string `env:"GITHUB_API_URL"`
	RepoOwner    string `env:"REPO_OWNER"`
	RepoName     string `env:"REPO_NAME"`

	// Logging
	DebugMode bool   `env:"DEBUG"      envDefault:"false"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Resident mode; empty means run once
	Schedule string `env:"REPORT_SCHEDULE"`

	GoogleChat GoogleChatConfig `envPrefix:"GOOGLE_CHAT_"`
	Jira       JiraConfig       `envPrefix:"JIRA_"`
	Slack      SlackConfig      `envPrefix:"SLACK_"`
	Archive    ArchiveConfig    `envPrefix:"REPORT_ARCHIVE_"`
}

// GoogleChatConfig controls delivery to the Google Chat incoming webhook.
type GoogleChatConfig struct {
	WebhookURL string        `env:"WEBHOOK"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"10s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"0"`
}

// JiraConfig controls optional ticket enrichment.
type JiraConfig struct {
	URL           string `env:"URL"`
	Username      string `env:"USERNAME"`
	APIToken      string `env:"API_TOKEN"`
	UsePAT        bool   `env:"USE_PAT"        envDefault:"false"`
	TicketPattern string `env:"TICKET_PATTERN"`
}

// Enabled reports whether enough credentials are present to query Jira.
func (c JiraConfig) Enabled() bool {
	if c.URL == "" || c.APIToken == "" {
		return false
	}
	return c.UsePAT || c.Username != ""
}

// SlackConfig controls the optional Slack mirror of the report.
type SlackConfig struct {
	Token        string   `env:"TOKEN"`
	Channel      string   `env:"CHANNEL"`
	TeamGroup    string   `env:"TEAM_GROUP"`
	MentionUsers []string `env:"MENTION_USERS" envSeparator:","`
}

// Enabled reports whether the Slack mirror should be used.
func (c SlackConfig) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// ArchiveConfig controls the optional S3 archive of rendered reports.
type ArchiveConfig struct {
	Bucket string `env:"BUCKET"`
	Prefix string `env:"PREFIX"`
	Region string `env:"REGION"`
}

// Enabled reports whether reports should be archived.
func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

// Load reads .env (if present) and parses the environment into a Config.
// It does not validate secrets; callers pick the Validate* method that
// matches what they are about to do.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize trims values and applies defaults that cannot be expressed as tags.
func (c *Config) Sanitize() {
	c.GithubToken = strings.TrimSpace(c.GithubToken)
	c.GithubAPIURL = strings.TrimSpace(c.GithubAPIURL)
	c.RepoOwner = strings.TrimSpace(c.RepoOwner)
	c.RepoName = strings.TrimSpace(c.RepoName)
	c.Schedule = strings.TrimSpace(c.Schedule)
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	c.GoogleChat.WebhookURL = strings.TrimSpace(c.GoogleChat.WebhookURL)
	if c.GoogleChat.Timeout <= 0 {
		c.GoogleChat.Timeout = 10 * time.Second
	}
	if c.GoogleChat.RetryLimit < 0 {
		c.GoogleChat.RetryLimit = 0
	}

	c.Jira.URL = strings.TrimRight(strings.TrimSpace(c.Jira.URL), "/")
	if c.Jira.TicketPattern == "" {
		c.Jira.TicketPattern = defaultTicketPattern
	}

	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	users := c.Slack.MentionUsers[:0]
	for _, u := range c.Slack.MentionUsers {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	c.Slack.MentionUsers = users

	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = defaultArchivePrefix
	}
	if c.Archive.Region == "" {
		c.Archive.Region = defaultArchiveRegion
	}
}

// ValidateReport checks the two secrets the report run needs. The token is
// checked first so a run with neither secret reports the token.
func (c *Config) ValidateReport() error {
	if c.GithubToken == "" {
		return ErrMissingToken
	}
	return c.ValidateWebhook()
}

// ValidateWebhook checks that the Google Chat webhook is an absolute http(s) URL.
func (c *Config) ValidateWebhook() error {
	if c.GoogleChat.WebhookURL == "" {
		return ErrMissingWebhook
	}
	u, err := url.Parse(c.GoogleChat.WebhookURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidWebhook
	}
	return nil
}

// ValidateRepo checks the settings of the single-repository commands.
func (c *Config) ValidateRepo() error {
	if c.GithubToken == "" {
		return ErrMissingToken
	}
	if !c.SingleRepo() {
		return ErrMissingRepo
	}
	return nil
}

// SingleRepo reports whether the scope is restricted to REPO_OWNER/REPO_NAME.
func (c *Config) SingleRepo() bool {
	return c.RepoOwner != "" && c.RepoName != ""
}

// Summary returns the non-secret settings as ordered key/value pairs.
func (c *Config) Summary() [][2]string {
	scope := "all repositories visible to the token"
	if c.SingleRepo() {
		scope = c.RepoOwner + "/" + c.RepoName
	}
	return [][2]string{
		{"Scope", scope},
		{"GitHub API URL", fallback(c.GithubAPIURL, "default")},
		{"Google Chat webhook", setOrNot(c.GoogleChat.WebhookURL)},
		{"Google Chat timeout", c.GoogleChat.Timeout.String()},
		{"Google Chat retries", fmt.Sprintf("%d", c.GoogleChat.RetryLimit)},
		{"JIRA URL", fallback(c.Jira.URL, "disabled")},
		{"JIRA ticket pattern", c.Jira.TicketPattern},
		{"Slack channel", fallback(c.Slack.Channel, "disabled")},
		{"Archive bucket", fallback(c.Archive.Bucket, "disabled")},
		{"Schedule", fallback(c.Schedule, "run once")},
		{"Debug mode", fmt.Sprintf("%v", c.DebugMode)},
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func setOrNot(value string) string {
	if value == "" {
		return "not set"
	}
	return "set (hidden)"
}
