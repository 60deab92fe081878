package snapshot

import (
	"fmt"
	"strconv"
	"strings"
)

// Markdown renders the snapshot in the chat markdown layout.
func (s *Snapshot) Markdown() string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("📘 **GitHub PR Daily Snapshot (%s)**\n", s.Date)

	add("🔹 *Activity Summary*")
	add("- PRs Raised Today: `%d`", s.Raised)
	add("- PRs Merged Today: `%d`", s.Merged)
	add("- PRs With Changes Requested: `%d`", s.ChangesRequested)
	add("- PRs Not Approved: `%d`", s.NotApproved)
	add("- Critical/Hotfix PRs Open: `%d`", s.Hotfix)
	add("- PRs Pending Review (>24h): `%d`", s.PendingReview)
	add("- Oldest Open PR (days): `%d`", s.OldestOpenDays)
	add("- Avg. Review Cycle Time (hrs): `%s`\n", s.formatAvgHours())

	add("👤 *Member-wise Breakdown*")
	add("| Member | Raised | Merged | Changes Requested | Not Approved | Reviews Done | Repo |")
	add("|--------|--------|--------|--------------------|--------------|---------------|------|")
	for _, row := range s.Members {
		add("| %s | %d | %d | %d | %d | %d | %s |",
			row.Member, row.Raised, row.Merged, row.ChangesRequested, row.NotApproved, row.ReviewsDone, row.Repo)
	}

	add("\n🚨 *Bottlenecks & Risk*")
	add("- PRs Stuck >2 Days: `%d`", s.Stuck)
	add("- Pending Releases: `%d`", s.PendingRelease)
	add("- Reopened/Failed PRs: `%d`\n", s.ReopenedFailed)

	add("✨ *Quick Insights*")
	add("- Most Active Contributor: `%s`", s.MostActive)
	add("- Review Load (Most): `%s`", s.ReviewHeavy)
	add("- Stale PR Owners: `%s`", s.StaleOwners)
	add("- Blockers/Hotfixes Today: `%s`", s.BlockerOwners)

	return strings.Join(lines, "\n")
}

// formatAvgHours keeps one decimal on whole hours ("12.0") once any PR was
// merged, and prints a bare "0" when there is nothing to average.
func (s *Snapshot) formatAvgHours() string {
	if s.Merged == 0 {
		return "0"
	}
	out := strconv.FormatFloat(s.AvgReviewHours, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
