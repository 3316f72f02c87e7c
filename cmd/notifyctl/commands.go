package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackmichael/esaver-notifier/internal/domain"
)

var errFeedDisabled = errors.New("feed monitoring is disabled: set FACEBOOK_APP_ID, FACEBOOK_APP_SECRET and FACEBOOK_PAGE_ID")

type analysisView struct {
	PostID        string `json:"postId"`
	CreatedTime   string `json:"createdTime"`
	PermalinkURL  string `json:"permalinkUrl"`
	IsRateUpdate  bool   `json:"isRateUpdate"`
	ExtractedRate string `json:"extractedRate,omitempty"`
	Preview       string `json:"preview"`
}

func newPostsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Fetch recent page posts and show the detector verdict for each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.loadApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Feed == nil {
				return errFeedDisabled
			}
			if limit <= 0 {
				limit = a.Config.PostLimit
			}

			posts, err := a.Feed.RecentPosts(ctx, limit)
			if err != nil {
				return err
			}

			views := make([]analysisView, len(posts))
			for i, p := range posts {
				views[i] = toAnalysisView(domain.AnalyzePost(p))
			}

			return opts.print(cmd, views, func(w io.Writer) {
				fmt.Fprintf(w, "Fetched %d posts\n", len(views))
				for _, v := range views {
					marker := " "
					if v.IsRateUpdate {
						marker = "*"
					}
					fmt.Fprintf(w, "%s %s  %s\n", marker, v.PostID, v.CreatedTime)
					if v.ExtractedRate != "" {
						fmt.Fprintf(w, "    rate: ₱%s/kWh\n", v.ExtractedRate)
					}
					fmt.Fprintf(w, "    %s\n", v.Preview)
				}
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of posts to fetch (default FEED_POST_LIMIT)")
	return cmd
}

func toAnalysisView(a domain.PostAnalysis) analysisView {
	v := analysisView{
		PostID:       a.PostID,
		PermalinkURL: a.PermalinkURL,
		IsRateUpdate: a.IsRateUpdate,
		Preview:      preview(a.Message, 80),
	}
	if !a.CreatedTime.IsZero() {
		v.CreatedTime = a.CreatedTime.Format("2006-01-02 15:04")
	}
	if a.ExtractedRate.Valid {
		v.ExtractedRate = a.ExtractedRate.Decimal.String()
	}
	return v
}

func newDetectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <text>",
		Short: "Run the rate-update detector on text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			isUpdate, rate := domain.DetectRateUpdate(text)

			result := struct {
				IsRateUpdate  bool   `json:"isRateUpdate"`
				ExtractedRate string `json:"extractedRate,omitempty"`
			}{IsRateUpdate: isUpdate}
			if rate.Valid {
				result.ExtractedRate = rate.Decimal.String()
			}

			return opts.print(cmd, result, func(w io.Writer) {
				switch {
				case !isUpdate:
					fmt.Fprintln(w, "not a rate update")
				case rate.Valid:
					fmt.Fprintf(w, "rate update: ₱%s/kWh\n", result.ExtractedRate)
				default:
					fmt.Fprintln(w, "rate update: no rate extracted")
				}
			})
		},
	}
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var n domain.CustomNotification

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a custom push notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.loadApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, err := a.Service.SendCustom(ctx, n)
			if err != nil {
				return err
			}
			if err := printOutcome(opts, cmd, outcome); err != nil {
				return err
			}
			return exitIfFailed(!outcome.Success, "notification was rejected")
		},
	}

	cmd.Flags().StringVar(&n.Heading, "heading", "", "notification heading (default \""+domain.DefaultManualHeading+"\")")
	cmd.Flags().StringVar(&n.Message, "message", "", "notification body (default \""+domain.DefaultManualMessage+"\")")
	cmd.Flags().StringVar(&n.Segment, "segment", "", "target segment (default \""+domain.DefaultManualSegment+"\")")
	return cmd
}

func newScheduledCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "scheduled <type>",
		Short:     "Send a catalog notification",
		Long:      "Send a catalog notification. Types: " + strings.Join(domain.ScheduledCatalog.Types(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: domain.ScheduledCatalog.Types(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.loadApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Service.SendScheduled(ctx, args[0])
			if err != nil {
				return err
			}
			if err := printOutcome(opts, cmd, result.Outcome); err != nil {
				return err
			}
			return exitIfFailed(!result.Outcome.Success, "%s notification was rejected", args[0])
		},
	}
}

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run feed rate monitoring once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.loadApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.Service.FeedEnabled() {
				return errFeedDisabled
			}

			report, err := a.Service.MonitorFeed(ctx)
			if err != nil {
				return err
			}

			err = opts.print(cmd, report, func(w io.Writer) {
				fmt.Fprintf(w, "Posts analyzed:        %d\n", report.PostsAnalyzed)
				fmt.Fprintf(w, "Rate updates found:    %d\n", report.RateUpdatesFound)
				fmt.Fprintf(w, "Notifications sent:    %d\n", report.NotificationsSent)
				fmt.Fprintf(w, "Notifications failed:  %d\n", report.NotificationsFailed)
				fmt.Fprintf(w, "Already notified:      %d\n", report.AlreadyNotified)
				for _, u := range report.Updates {
					status := "sent " + u.Outcome.ID
					switch {
					case u.Skipped:
						status = "skipped"
					case !u.Outcome.Success:
						status = fmt.Sprintf("failed: %v", u.Outcome.Error)
					}
					fmt.Fprintf(w, "  %s  %s  %s\n", u.PostID, u.PostURL, status)
				}
			})
			if err != nil {
				return err
			}
			return exitIfFailed(report.Failed(), "%d of %d rate update notifications failed", report.NotificationsFailed, report.RateUpdatesFound)
		},
	}
}

func printOutcome(opts *rootOptions, cmd *cobra.Command, outcome domain.DispatchOutcome) error {
	return opts.print(cmd, outcome, func(w io.Writer) {
		if outcome.Success {
			fmt.Fprintf(w, "sent: %s\n", outcome.ID)
			return
		}
		fmt.Fprintf(w, "rejected: %v\n", outcome.Error)
	})
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
