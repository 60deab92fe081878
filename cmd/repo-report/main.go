package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pr-snapshot/internal/config"
	"pr-snapshot/internal/github"
	"pr-snapshot/internal/googlechat"
	"pr-snapshot/internal/logging"
	"pr-snapshot/internal/report"
)

var errReported = errors.New("run failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, out io.Writer) int {
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(out io.Writer) *cobra.Command {
	var check, post bool

	cmd := &cobra.Command{
		Use:           "repo-report",
		Short:         "Print the PR snapshot for REPO_OWNER/REPO_NAME",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			if err := cfg.ValidateRepo(); err != nil {
				return err
			}
			if post {
				if err := cfg.ValidateWebhook(); err != nil {
					return err
				}
			}

			// Logs go to stderr so stdout carries only the report.
			log := logging.NewWithOutput(os.Stderr, cfg.DebugMode, cfg.LogFormat).
				WithField("run_id", uuid.NewString())

			repo := github.Repo{Owner: cfg.RepoOwner, Name: cfg.RepoName}
			source, err := report.NewSource(cmd.Context(), cfg, log)
			if err != nil {
				log.WithError(err).Error("Error creating GitHub client")
				return errReported
			}

			if check {
				return checkRepo(cmd.Context(), source, repo, out, log)
			}
			return printReport(cmd.Context(), cfg, source, repo, out, post, log)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "list the open pull requests to verify access and exit")
	cmd.Flags().BoolVar(&post, "post", false, "also post the report to GOOGLE_CHAT_WEBHOOK")

	return cmd
}

func checkRepo(ctx context.Context, source *github.Client, repo github.Repo, out io.Writer, log logrus.FieldLogger) error {
	prs, err := source.ListPullRequests(ctx, repo, "open")
	if err != nil {
		log.WithError(err).Errorf("Error fetching PRs from %s", repo)
		return errReported
	}

	fmt.Fprintf(out, "%s: %d open pull requests\n", repo, len(prs))
	for _, pr := range prs {
		fmt.Fprintf(out, "#%d\t%s\t%s\n", pr.Number, pr.Author, pr.Title)
	}
	return nil
}

func printReport(ctx context.Context, cfg *config.Config, source *github.Client, repo github.Repo, out io.Writer, post bool, log logrus.FieldLogger) error {
	runner := &report.Runner{
		Source: source,
		Repos:  []github.Repo{repo},
		Log:    log,
	}

	text, err := runner.Build(ctx)
	if err != nil {
		log.WithError(err).Error("Error building report")
		return errReported
	}
	fmt.Fprintln(out, text)

	if !post {
		return nil
	}

	chat, err := googlechat.NewClient(googlechat.Config{
		WebhookURL: cfg.GoogleChat.WebhookURL,
		Timeout:    cfg.GoogleChat.Timeout,
		RetryLimit: cfg.GoogleChat.RetryLimit,
	})
	if err != nil {
		return err
	}
	if err := chat.Send(ctx, text); err != nil {
		log.WithError(err).Error("Error sending report to Google Chat")
		return errReported
	}
	log.Info("PR report sent to google-chat")
	return nil
}
