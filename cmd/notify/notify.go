package notify

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/wildwatch-go/internal/conf"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/notification"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// Command returns a cobra command that sends a test notification to the configured services.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		title   string
		message string
		sample  bool
		urls    []string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification",
		Long: `Send a test notification to the configured notification services.

Examples:
  # Plain message to the services in config.yaml
  wildwatch notify --title="Test" --message="Hello from the trail camera"

  # Render the configured alert templates with a sample sighting
  wildwatch notify --sample

  # One-off service URL, notifications need not be enabled in the config
  wildwatch notify --url="ntfy://ntfy.sh/wildwatch-test"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := settings.NotificationConfig()
			if len(urls) > 0 {
				cfg.URLs = urls
			}
			if len(cfg.URLs) == 0 {
				return errors.Newf("no notification URLs configured, set notification.urls or pass --url").
					Component("cli").
					Category(errors.CategoryConfiguration).
					Build()
			}

			n, err := notification.New(cfg)
			if err != nil {
				return err
			}
			defer n.Close()

			if sample {
				r := sampleReport()
				if title, message, err = n.Render(&r, "sample"); err != nil {
					return err
				}
			}

			if err := n.Send(cmd.Context(), title, message); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notification sent to %d service(s): %s\n", len(cfg.URLs), title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "Test Notification", "Notification title")
	cmd.Flags().StringVar(&message, "message", "This is a test notification from wildwatch", "Notification message")
	cmd.Flags().BoolVar(&sample, "sample", false, "Render the alert templates with a sample sighting")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "Service URL overriding notification.urls (repeatable)")

	return cmd
}

func sampleReport() reporting.Report {
	sel := &detection.Selected{
		Candidate: detection.Candidate{
			Species:             "Vulpes vulpes",
			Confidence:          0.92,
			Condition:           detection.ConditionInjured,
			ConditionConfidence: 81,
			Info:                &detection.SpeciesInfo{CommonName: "Red Fox", ScientificName: "Vulpes vulpes"},
		},
		SelectedAt: time.Now(),
	}
	draft := reporting.Draft{Location: "Sample location", AnimalCount: 1, Notes: "Test alert"}
	return reporting.Build(sel, draft, "wildwatch-cli", reporting.SourceUpload, reporting.Attachment{}, time.Now())
}
