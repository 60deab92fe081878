package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-snapshot/internal/github"
)

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func fixture() []*github.RepoActivity {
	return []*github.RepoActivity{{
		Repo: github.Repo{Owner: "acme", Name: "api"},
		Open: []github.PullRequest{
			{Number: 1, Author: "alice", Labels: []string{"Hotfix"}, JiraTicket: "OPS-1", CreatedAt: at("2026-10-10T00:00:00Z")},
			{Number: 2, Author: "bob", CreatedAt: at("2026-10-19T09:00:00Z")},
			{Number: 3, Author: "carol", Labels: []string{"pending-release"}, JiraTicket: "OPS-2", CreatedAt: at("2026-10-17T10:00:00Z")},
		},
		Closed: []github.PullRequest{
			{Number: 4, Author: "alice", CreatedAt: at("2026-10-19T01:00:00Z"), MergedAt: ptr(at("2026-10-19T06:00:00Z")), ClosedAt: ptr(at("2026-10-19T06:00:00Z"))},
			{Number: 5, Author: "dave", CreatedAt: at("2026-10-01T00:00:00Z"), ClosedAt: ptr(at("2026-10-19T03:00:00Z"))},
			{Number: 6, Author: "bob", CreatedAt: at("2026-10-12T00:00:00Z"), MergedAt: ptr(at("2026-10-19T02:00:00Z")), ClosedAt: ptr(at("2026-10-19T02:00:00Z"))},
		},
		Reviews: map[int][]github.Review{
			1: {{Reviewer: "bob", State: "CHANGES_REQUESTED"}},
			2: {{Reviewer: "alice", State: "APPROVED"}},
			4: {{Reviewer: "bob", State: "APPROVED"}, {Reviewer: "carol", State: "COMMENTED"}},
			6: {{Reviewer: "alice", State: "APPROVED"}},
		},
	}}
}

func TestComputeActivitySummary(t *testing.T) {
	now := at("2026-10-19T12:00:00Z")
	s := Compute(fixture(), now, Options{BlockedTickets: map[string]bool{"OPS-2": true}})

	assert.Equal(t, "2026-10-19", s.Date)
	assert.Equal(t, 2, s.Raised)
	assert.Equal(t, 2, s.Merged)
	assert.Equal(t, 1, s.ChangesRequested)
	assert.Equal(t, 2, s.NotApproved)
	assert.Equal(t, 1, s.Hotfix)
	assert.Equal(t, 1, s.PendingReview)
	assert.Equal(t, 9, s.OldestOpenDays)
	assert.Equal(t, 87.5, s.AvgReviewHours)
}

func TestComputeBottlenecksAndInsights(t *testing.T) {
	now := at("2026-10-19T12:00:00Z")
	s := Compute(fixture(), now, Options{BlockedTickets: map[string]bool{"OPS-2": true}})

	assert.Equal(t, 2, s.Stuck)
	assert.Equal(t, 1, s.PendingRelease)
	assert.Equal(t, 1, s.ReopenedFailed)
	assert.Equal(t, "alice", s.StaleOwners)
	assert.Equal(t, "alice, carol", s.BlockerOwners)
	assert.Equal(t, "bob", s.MostActive, "ties go to the first row")
	assert.Equal(t, "bob", s.ReviewHeavy)
}

func TestComputeMemberRows(t *testing.T) {
	now := at("2026-10-19T12:00:00Z")
	s := Compute(fixture(), now, Options{})

	require.Len(t, s.Members, 3)
	assert.Equal(t, MemberRow{Member: "bob", Repo: "api", Raised: 1, Merged: 1, ReviewsDone: 2}, s.Members[0])
	assert.Equal(t, MemberRow{Member: "alice", Repo: "api", Raised: 1, Merged: 1, ChangesRequested: 1, NotApproved: 1, ReviewsDone: 2}, s.Members[1])
	assert.Equal(t, MemberRow{Member: "carol", Repo: "api", NotApproved: 1, ReviewsDone: 2}, s.Members[2])
	assert.Equal(t, "alice", s.BlockerOwners, "without ticket data only hotfix owners are blockers")
}

func TestComputeAcrossRepositories(t *testing.T) {
	now := at("2026-10-19T12:00:00Z")
	activities := append(fixture(), &github.RepoActivity{
		Repo: github.Repo{Owner: "acme", Name: "web"},
		Open: []github.PullRequest{
			{Number: 1, Author: "erin", CreatedAt: at("2026-09-30T12:00:00Z")},
		},
	}, nil)

	s := Compute(activities, now, Options{})

	assert.Equal(t, 19, s.OldestOpenDays)
	assert.Equal(t, 3, s.NotApproved)
	assert.Equal(t, "alice, erin", s.StaleOwners)
	require.Len(t, s.Members, 4)
	assert.Equal(t, MemberRow{Member: "erin", Repo: "web", NotApproved: 1}, s.Members[3])
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, at("2026-10-19T23:59:00+02:00"), Options{})

	assert.Equal(t, "2026-10-19", s.Date)
	assert.Zero(t, s.OldestOpenDays)
	assert.Zero(t, s.AvgReviewHours)
	assert.Equal(t, "-", s.MostActive)
	assert.Equal(t, "-", s.ReviewHeavy)
	assert.Equal(t, "-", s.StaleOwners)
	assert.Equal(t, "-", s.BlockerOwners)
}

func TestMarkdown(t *testing.T) {
	now := at("2026-10-19T12:00:00Z")
	md := Compute(fixture(), now, Options{}).Markdown()

	for _, want := range []string{
		"📘 **GitHub PR Daily Snapshot (2026-10-19)**",
		"- PRs Raised Today: `2`",
		"- Avg. Review Cycle Time (hrs): `87.5`",
		"| alice | 1 | 1 | 1 | 1 | 2 | api |",
		"- Reopened/Failed PRs: `1`",
		"- Stale PR Owners: `alice`",
		"- Blockers/Hotfixes Today: `alice`",
	} {
		assert.Contains(t, md, want)
	}
	assert.True(t, strings.HasSuffix(md, "- Blockers/Hotfixes Today: `alice`"))
}

func TestMarkdownEmptyAverage(t *testing.T) {
	md := Compute(nil, at("2026-10-19T12:00:00Z"), Options{}).Markdown()
	assert.Contains(t, md, "- Avg. Review Cycle Time (hrs): `0`")
	assert.Contains(t, md, "- Most Active Contributor: `-`")
}

func TestMarkdownWholeHourAverage(t *testing.T) {
	activity := &github.RepoActivity{
		Repo: github.Repo{Owner: "acme", Name: "api"},
		Closed: []github.PullRequest{
			{Number: 1, Author: "bob", CreatedAt: at("2026-10-18T22:00:00Z"), MergedAt: ptr(at("2026-10-19T10:00:00Z")), ClosedAt: ptr(at("2026-10-19T10:00:00Z"))},
		},
	}

	md := Compute([]*github.RepoActivity{activity}, at("2026-10-19T12:00:00Z"), Options{}).Markdown()
	assert.Contains(t, md, "- Avg. Review Cycle Time (hrs): `12.0`")
}
