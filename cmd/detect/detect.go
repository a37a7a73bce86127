package detect

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/wildwatch-go/internal/analysis"
	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// Command creates the detect command for analyzing a single image or video file.
func Command(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	var (
		report bool
		asJSON bool
		draft  reporting.Draft
	)

	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Analyze an image or video file",
		Long: `Analyze a single image or video file with the inference service and print the
selected detection. With --report the sighting is also submitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d *reporting.Draft
			if report {
				d = &draft
			}
			res, err := analysis.FileAnalysis(cmd.Context(), settings, info, args[0], d)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&report, "report", false, "Submit a sighting report for the detection")
	fs.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	fs.StringVar(&draft.Location, "location", "", "Report location")
	fs.IntVar(&draft.AnimalCount, "count", 1, "Number of animals")
	fs.StringVar(&draft.Behavior, "behavior", "", "Observed behavior")
	fs.StringVar(&draft.Notes, "notes", "", "Free-form notes")
	fs.StringVar(&draft.Urgency, "urgency", "", "low, medium or high (default: from condition)")
	fs.String("user", "", "Reporter ID attached to the report")
	conf.BindFlag(fs, "user", "reporting.userid")

	return cmd
}

func printResult(w io.Writer, res analysis.FileResult) {
	if res.Detection == nil {
		fmt.Fprintf(w, "%s: nothing detected (%s)\n", res.File, res.Elapsed.Round(time.Millisecond))
		return
	}
	d := res.Detection
	fmt.Fprintf(w, "%s: %s %.1f%%", res.File, d.DisplayName(), d.Confidence*100)
	if d.Condition != "" {
		fmt.Fprintf(w, ", condition %s", d.Condition)
	}
	fmt.Fprintf(w, " (%s)\n", res.Elapsed.Round(time.Millisecond))
	if res.Receipt != nil {
		fmt.Fprintf(w, "report submitted: id=%s\n", res.Receipt.ReportID)
	}
}
