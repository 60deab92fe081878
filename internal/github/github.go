package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v45/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const perPage = 100

// ErrListPullRequests marks a repository whose pull requests GitHub refused to
// list. The report may skip such repositories. Auth failures and transport
// errors are never marked.
var ErrListPullRequests = errors.New("list pull requests")

// Options contains options for talking to the GitHub API
type Options struct {
	Token         string // GitHub API token
	BaseURL       string // API base URL; empty means api.github.com
	TicketPattern string // Regex used to pull a ticket key out of PR titles
	Timeout       time.Duration
}

// Repo identifies a repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// PullRequest is a single PR fetched from GitHub
type PullRequest struct {
	Number     int
	Title      string
	URL        string
	Author     string
	Labels     []string
	JiraTicket string
	IsDraft    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
	MergedAt   *time.Time
}

// Review is a single submitted review on a PR
type Review struct {
	Reviewer    string
	State       string
	SubmittedAt time.Time
}

// RepoActivity is everything the snapshot needs from one repository.
type RepoActivity struct {
	Repo    Repo
	Open    []PullRequest
	Closed  []PullRequest
	Reviews map[int][]Review
}

// Client wraps the GitHub API client.
type Client struct {
	api      *github.Client
	ticketRe *regexp.Regexp
	log      logrus.FieldLogger
}

// NewClient creates a client authenticated with a static OAuth2 token.
func NewClient(ctx context.Context, opts Options, log logrus.FieldLogger) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: opts.Token},
	)
	tc := oauth2.NewClient(ctx, ts)
	if opts.Timeout > 0 {
		tc.Timeout = opts.Timeout
	}
	api := github.NewClient(tc)

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		api.BaseURL = u
	}

	var ticketRe *regexp.Regexp
	if opts.TicketPattern != "" {
		re, err := regexp.Compile(opts.TicketPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid ticket pattern %q: %w", opts.TicketPattern, err)
		}
		ticketRe = re
	}

	return &Client{api: api, ticketRe: ticketRe, log: log}, nil
}

// VerifyAuth fetches the authenticated user and returns its login.
func (c *Client) VerifyAuth(ctx context.Context) (string, error) {
	user, _, err := c.api.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("error verifying GitHub authentication: %w", err)
	}
	return user.GetLogin(), nil
}

// ListRepos returns every repository visible to the authenticated user.
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	opts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var repos []Repo
	for {
		page, resp, err := c.api.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("error listing repositories: %w", err)
		}
		for _, r := range page {
			repos = append(repos, Repo{Owner: r.GetOwner().GetLogin(), Name: r.GetName()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.log.Debugf("Found %d repositories", len(repos))
	return repos, nil
}

// ListPullRequests returns all PRs of a repository in the given state.
// A missing repository (404) yields no PRs.
func (c *Client) ListPullRequests(ctx context.Context, repo Repo, state string) ([]PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	return c.listPullRequests(ctx, repo, opts, time.Time{})
}

// ListClosedSince returns closed PRs updated at or after since, newest first.
// Pagination stops at the first page that reaches past the cutoff.
func (c *Client) ListClosedSince(ctx context.Context, repo Repo, since time.Time) ([]PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	return c.listPullRequests(ctx, repo, opts, since)
}

func (c *Client) listPullRequests(ctx context.Context, repo Repo, opts *github.PullRequestListOptions, since time.Time) ([]PullRequest, error) {
	var prs []PullRequest
	for {
		page, resp, err := c.api.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			if isNotFound(resp) {
				c.log.Debugf("Repository %s not found or not accessible, skipping", repo)
				return nil, nil
			}
			if resp == nil || isAuthFailure(err) {
				return nil, fmt.Errorf("error fetching PRs from %s: %w", repo, err)
			}
			return nil, fmt.Errorf("%w from %s: %v", ErrListPullRequests, repo, err)
		}

		reachedCutoff := false
		for _, pr := range page {
			if !since.IsZero() && pr.GetUpdatedAt().Before(since) {
				reachedCutoff = true
				continue
			}
			prs = append(prs, c.convert(pr))
		}

		if reachedCutoff || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.log.Debugf("Found %d %s PRs in %s", len(prs), opts.State, repo)
	return prs, nil
}

// ListReviews returns every review on a PR. A 404 yields no reviews.
func (c *Client) ListReviews(ctx context.Context, repo Repo, number int) ([]Review, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var reviews []Review
	for {
		page, resp, err := c.api.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			if isNotFound(resp) {
				return nil, nil
			}
			return nil, fmt.Errorf("error fetching reviews for %s#%d: %w", repo, number, err)
		}
		for _, r := range page {
			reviews = append(reviews, Review{
				Reviewer:    r.GetUser().GetLogin(),
				State:       r.GetState(),
				SubmittedAt: r.GetSubmittedAt(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

// CollectRepo gathers open PRs, PRs closed since the cutoff, and the reviews
// the snapshot needs: every open PR plus closed PRs raised or merged since then.
func (c *Client) CollectRepo(ctx context.Context, repo Repo, since time.Time) (*RepoActivity, error) {
	open, err := c.ListPullRequests(ctx, repo, "open")
	if err != nil {
		return nil, err
	}
	closed, err := c.ListClosedSince(ctx, repo, since)
	if err != nil {
		return nil, err
	}

	activity := &RepoActivity{
		Repo:    repo,
		Open:    open,
		Closed:  closed,
		Reviews: make(map[int][]Review),
	}

	var numbers []int
	for _, pr := range open {
		numbers = append(numbers, pr.Number)
	}
	for _, pr := range closed {
		raised := !pr.CreatedAt.Before(since)
		merged := pr.MergedAt != nil && !pr.MergedAt.Before(since)
		if raised || merged {
			numbers = append(numbers, pr.Number)
		}
	}

	for _, n := range numbers {
		if _, done := activity.Reviews[n]; done {
			continue
		}
		reviews, err := c.ListReviews(ctx, repo, n)
		if err != nil {
			return nil, err
		}
		activity.Reviews[n] = reviews
	}

	return activity, nil
}

func (c *Client) convert(pr *github.PullRequest) PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, label := range pr.Labels {
		if label.Name != nil {
			labels = append(labels, *label.Name)
		}
	}

	result := PullRequest{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		URL:        pr.GetHTMLURL(),
		Author:     pr.GetUser().GetLogin(),
		Labels:     labels,
		JiraTicket: c.extractTicket(pr.GetTitle()),
		IsDraft:    pr.GetDraft(),
		CreatedAt:  pr.GetCreatedAt(),
		UpdatedAt:  pr.GetUpdatedAt(),
		ClosedAt:   pr.ClosedAt,
		MergedAt:   pr.MergedAt,
	}

	c.log.Debugf("PR #%d by %s (draft: %t, labels: %s, ticket: %q)",
		result.Number, result.Author, result.IsDraft, strings.Join(labels, ", "), result.JiraTicket)

	return result
}

func (c *Client) extractTicket(title string) string {
	if c.ticketRe == nil || title == "" {
		return ""
	}
	return c.ticketRe.FindString(title)
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound
}

// isAuthFailure reports whether GitHub rejected the token or throttled it.
func isAuthFailure(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code := errResp.Response.StatusCode
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}
