package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
)

// Options contains options for fetching JIRA ticket information
type Options struct {
	URL      string // JIRA base URL
	Username string // JIRA username (for Basic auth)
	APIToken string // JIRA API token or Personal Access Token
	UsePAT   bool   // Use Personal Access Token instead of Basic auth
}

// TicketInfo represents information about a JIRA ticket
type TicketInfo struct {
	TicketID  string
	Status    string
	Summary   string
	IsBlocked bool
}

var blockedMarkers = []string{"block", "impediment", "pause"}

// Client fetches ticket information.
type Client struct {
	api *jira.Client
	log logrus.FieldLogger
}

// NewClient creates a JIRA client with Basic or PAT authentication.
func NewClient(opts Options, log logrus.FieldLogger) (*Client, error) {
	if opts.URL == "" || opts.APIToken == "" || (!opts.UsePAT && opts.Username == "") {
		return nil, fmt.Errorf("JIRA credentials not fully configured")
	}

	var httpClient *http.Client
	if opts.UsePAT {
		log.Debug("Using JIRA Personal Access Token authentication")
		tp := jira.PATAuthTransport{Token: opts.APIToken}
		httpClient = tp.Client()
	} else {
		log.Debug("Using JIRA Basic authentication (email + API token)")
		tp := jira.BasicAuthTransport{Username: opts.Username, Password: opts.APIToken}
		httpClient = tp.Client()
	}

	api, err := jira.NewClient(httpClient, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	return &Client{api: api, log: log}, nil
}

// FetchTicketInfo fetches information for a single JIRA ticket.
// A missing ticket is reported with status "Not Found", not as an error.
func (c *Client) FetchTicketInfo(ctx context.Context, ticketID string) (*TicketInfo, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("ticket ID is required")
	}

	c.log.Debugf("Fetching JIRA info for ticket %s", ticketID)

	issue, resp, err := c.api.Issue.GetWithContext(ctx, ticketID, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return &TicketInfo{
				TicketID: ticketID,
				Status:   "Not Found",
				Summary:  "Ticket not found",
			}, nil
		}
		return nil, fmt.Errorf("error fetching JIRA ticket %s: %w", ticketID, err)
	}

	info := &TicketInfo{TicketID: ticketID, Status: "No Data"}
	if issue == nil || issue.Fields == nil {
		c.log.Debugf("JIRA ticket %s returned no usable data", ticketID)
		return info, nil
	}

	info.Status = "No Status"
	if issue.Fields.Status != nil && issue.Fields.Status.Name != "" {
		info.Status = issue.Fields.Status.Name
		if isBlockedMarker(info.Status) {
			info.IsBlocked = true
			c.log.Debugf("JIRA ticket %s marked as blocked due to status: %s", ticketID, info.Status)
		}
	}

	info.Summary = "No Description"
	if issue.Fields.Summary != "" {
		info.Summary = issue.Fields.Summary
	}

	for _, label := range issue.Fields.Labels {
		if isBlockedMarker(label) {
			info.IsBlocked = true
			c.log.Debugf("JIRA ticket %s marked as blocked due to label: %s", ticketID, label)
			break
		}
	}

	return info, nil
}

// FetchTicketsInfo fetches information for multiple tickets. Per-ticket
// failures are logged and recorded with status "Error".
func (c *Client) FetchTicketsInfo(ctx context.Context, ticketIDs []string) map[string]*TicketInfo {
	results := make(map[string]*TicketInfo)

	for _, ticketID := range ticketIDs {
		if ticketID == "" {
			continue
		}
		if _, seen := results[ticketID]; seen {
			continue
		}

		info, err := c.FetchTicketInfo(ctx, ticketID)
		if err != nil {
			c.log.WithError(err).Warnf("Error fetching JIRA ticket %s", ticketID)
			results[ticketID] = &TicketInfo{
				TicketID: ticketID,
				Status:   "Error",
				Summary:  fmt.Sprintf("Error: %v", err),
			}
			continue
		}

		results[ticketID] = info
	}

	return results
}

// BlockedTickets returns the keys of the tickets marked blocked.
func BlockedTickets(infos map[string]*TicketInfo) map[string]bool {
	blocked := make(map[string]bool)
	for id, info := range infos {
		if info != nil && info.IsBlocked {
			blocked[id] = true
		}
	}
	return blocked
}

func isBlockedMarker(value string) bool {
	lower := strings.ToLower(value)
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
