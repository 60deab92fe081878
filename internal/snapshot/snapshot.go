// Package snapshot turns collected pull-request activity into the daily
// snapshot metrics and renders them as a chat message.
package snapshot

import (
	"math"
	"sort"
	"strings"
	"time"

	"pr-snapshot/internal/github"
)

const (
	pendingReviewAge    = 24 * time.Hour
	stuckAge            = 48 * time.Hour
	staleAge            = 7 * 24 * time.Hour
	labelPendingRelease = "pending-release"
	none                = "-"
)

var hotfixLabels = []string{"hotfix", "critical"}

// MemberRow is one author's activity in one repository.
type MemberRow struct {
	Member           string
	Repo             string
	Raised           int
	Merged           int
	ChangesRequested int
	NotApproved      int
	ReviewsDone      int
}

// Snapshot holds the computed daily metrics.
type Snapshot struct {
	Date string

	Raised           int
	Merged           int
	ChangesRequested int
	NotApproved      int
	Hotfix           int
	PendingReview    int
	OldestOpenDays   int
	AvgReviewHours   float64

	Members []MemberRow

	Stuck          int
	PendingRelease int
	ReopenedFailed int

	MostActive    string
	ReviewHeavy   string
	StaleOwners   string
	BlockerOwners string
}

// Options tune the computation.
type Options struct {
	// BlockedTickets holds ticket keys known to be blocked. Open PRs whose
	// ticket is in the set count their author as a blocker owner.
	BlockedTickets map[string]bool
}

// Compute builds the snapshot for the UTC day containing now.
func Compute(activities []*github.RepoActivity, now time.Time, opts Options) *Snapshot {
	now = now.UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	s := &Snapshot{Date: todayStart.Format("2006-01-02")}

	var (
		oldestOpen  time.Time
		cycleHours  []float64
		staleOwners = map[string]bool{}
		blockers    = map[string]bool{}
	)

	for _, activity := range activities {
		if activity == nil {
			continue
		}
		members := newMemberSet(activity.Repo.Name)

		var raisedToday, mergedToday []github.PullRequest
		for _, pr := range activity.Open {
			if !pr.CreatedAt.Before(todayStart) {
				raisedToday = append(raisedToday, pr)
			}
		}
		for _, pr := range activity.Closed {
			if !pr.CreatedAt.Before(todayStart) {
				raisedToday = append(raisedToday, pr)
			}
		}
		for _, pr := range activity.Closed {
			switch {
			case pr.MergedAt != nil && !pr.MergedAt.Before(todayStart):
				mergedToday = append(mergedToday, pr)
			case pr.MergedAt == nil && pr.ClosedAt != nil && !pr.ClosedAt.Before(todayStart):
				s.ReopenedFailed++
			}
		}

		s.Raised += len(raisedToday)
		s.Merged += len(mergedToday)

		for _, pr := range raisedToday {
			members.get(pr.Author).Raised++
		}
		for _, pr := range mergedToday {
			members.get(pr.Author).Merged++
		}

		var changesRequested, notApproved []github.PullRequest
		for _, pr := range activity.Open {
			reviews := activity.Reviews[pr.Number]
			if hasState(reviews, "changes_requested") {
				changesRequested = append(changesRequested, pr)
			}
			if !hasState(reviews, "approved") {
				notApproved = append(notApproved, pr)
			}
			if hasAnyLabel(pr.Labels, hotfixLabels...) {
				s.Hotfix++
				blockers[pr.Author] = true
			}
			if pr.JiraTicket != "" && opts.BlockedTickets[pr.JiraTicket] {
				blockers[pr.Author] = true
			}

			age := now.Sub(pr.CreatedAt)
			if age > pendingReviewAge && len(reviews) == 0 {
				s.PendingReview++
			}
			if age > stuckAge {
				s.Stuck++
			}
			if age > staleAge {
				staleOwners[pr.Author] = true
			}
			if hasAnyLabel(pr.Labels, labelPendingRelease) {
				s.PendingRelease++
			}
			if oldestOpen.IsZero() || pr.CreatedAt.Before(oldestOpen) {
				oldestOpen = pr.CreatedAt
			}
		}

		s.ChangesRequested += len(changesRequested)
		s.NotApproved += len(notApproved)
		for _, pr := range changesRequested {
			members.get(pr.Author).ChangesRequested++
		}
		for _, pr := range notApproved {
			members.get(pr.Author).NotApproved++
		}

		for _, pr := range mergedToday {
			cycleHours = append(cycleHours, pr.MergedAt.Sub(pr.CreatedAt).Hours())
		}

		// Reviews done counts reviews on today's PRs; a PR both raised and
		// merged today is counted once per list it appears in.
		for _, pr := range append(append([]github.PullRequest{}, raisedToday...), mergedToday...) {
			for _, r := range activity.Reviews[pr.Number] {
				if r.Reviewer == "" {
					continue
				}
				members.get(r.Reviewer).ReviewsDone++
			}
		}

		s.Members = append(s.Members, members.rows()...)
	}

	if !oldestOpen.IsZero() {
		s.OldestOpenDays = int(now.Sub(oldestOpen).Hours() / 24)
	}
	s.AvgReviewHours = average(cycleHours)

	s.MostActive, s.ReviewHeavy = none, none
	if len(s.Members) > 0 {
		s.MostActive = maxBy(s.Members, func(r MemberRow) int { return r.Raised })
		s.ReviewHeavy = maxBy(s.Members, func(r MemberRow) int { return r.ReviewsDone })
	}
	s.StaleOwners = joinSorted(staleOwners)
	s.BlockerOwners = joinSorted(blockers)

	return s
}

type memberSet struct {
	repo    string
	order   []string
	byLogin map[string]*MemberRow
}

func newMemberSet(repo string) *memberSet {
	return &memberSet{repo: repo, byLogin: map[string]*MemberRow{}}
}

func (m *memberSet) get(login string) *MemberRow {
	if row, ok := m.byLogin[login]; ok {
		return row
	}
	row := &MemberRow{Member: login, Repo: m.repo}
	m.byLogin[login] = row
	m.order = append(m.order, login)
	return row
}

func (m *memberSet) rows() []MemberRow {
	out := make([]MemberRow, 0, len(m.order))
	for _, login := range m.order {
		out = append(out, *m.byLogin[login])
	}
	return out
}

func hasState(reviews []github.Review, state string) bool {
	for _, r := range reviews {
		if strings.EqualFold(r.State, state) {
			return true
		}
	}
	return false
}

func hasAnyLabel(labels []string, want ...string) bool {
	for _, l := range labels {
		for _, w := range want {
			if strings.EqualFold(l, w) {
				return true
			}
		}
	}
	return false
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*100) / 100
}

// maxBy returns the member of the first row with the highest value.
func maxBy(rows []MemberRow, value func(MemberRow) int) string {
	best := rows[0]
	for _, r := range rows[1:] {
		if value(r) > value(best) {
			best = r
		}
	}
	return best.Member
}

func joinSorted(set map[string]bool) string {
	if len(set) == 0 {
		return none
	}
	names := make([]string, 0, len(set))
	for name := range set {
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return none
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
