package slack

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Options contains options for mirroring the report to Slack
type Options struct {
	Token        string   // Slack bot token
	Channel      string   // Channel to post to (e.g., "#channel-name" or "C1234567890")
	TeamGroup    string   // Slack team group ID to mention (optional)
	MentionUsers []string // Slack user IDs to mention (takes precedence over TeamGroup)
	APIURL       string   // Override for the Slack API base URL
}

// Client posts reports to a Slack channel.
type Client struct {
	api  *slack.Client
	opts Options
	log  logrus.FieldLogger
}

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// NewClient validates options and builds the Slack API client.
func NewClient(opts Options, log logrus.FieldLogger) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("Slack token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("Slack channel is required")
	}

	var apiOpts []slack.Option
	if opts.APIURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(opts.APIURL))
	}

	return &Client{
		api:  slack.New(opts.Token, apiOpts...),
		opts: opts,
		log:  log,
	}, nil
}

// Name identifies the sink in logs.
func (c *Client) Name() string {
	return "slack"
}

// Send posts the report to the configured channel.
func (c *Client) Send(ctx context.Context, text string) error {
	message := c.FormatMessage(text)

	c.log.Debugf("Sending message to channel %s (%d characters)", c.opts.Channel, len(message))

	_, _, err := c.api.PostMessageContext(
		ctx,
		c.opts.Channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("error posting message to Slack: %w", err)
	}
	return nil
}

// FormatMessage converts chat markdown to Slack mrkdwn and appends mentions.
func (c *Client) FormatMessage(text string) string {
	lines := []string{boldPattern.ReplaceAllString(text, "*$1*")}

	if mention := c.mentionLine(); mention != "" {
		lines = append(lines, "", mention)
	}
	return strings.Join(lines, "\n")
}

func (c *Client) mentionLine() string {
	if len(c.opts.MentionUsers) > 0 {
		var mentions []string
		for _, userID := range c.opts.MentionUsers {
			userID = strings.TrimSpace(userID)
			if userID != "" {
				mentions = append(mentions, fmt.Sprintf("<@%s>", userID))
			}
		}
		if len(mentions) > 0 {
			return fmt.Sprintf("%s Please make sure to review these pull requests!", strings.Join(mentions, " "))
		}
	}
	if c.opts.TeamGroup != "" {
		return fmt.Sprintf("<!subteam^%s> Please make sure to review these pull requests!", c.opts.TeamGroup)
	}
	return ""
}
