package live

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/wildwatch-go/internal/analysis"
	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
)

// Command creates the live command, which runs the detection node.
func Command(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the live detection node",
		Long: `Run the live detection node: the camera session, the control API and the
configured MQTT, notification and photo storage integrations.

The camera is opened through the API (POST /api/v1/session/start), or at startup
with --autostart. Without the API the camera always starts immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings, info, analysis.RealtimeOptions{AutoStart: autoStart})
		},
	}

	cmd.Flags().BoolVar(&autoStart, "autostart", false, "Open the camera immediately")
	setupFlags(cmd)

	return cmd
}

// setupFlags configures flags specific to the live command.
func setupFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("camera", "", "Frame source: ffmpeg or still")
	fs.String("device", "", "Camera device, stream URL, or image path for the still source")
	fs.String("user", "", "Reporter ID attached to every report")
	fs.String("listen", "", "Control API listen address")
	fs.Bool("api", true, "Serve the control API")
	fs.Duration("interval", 0, "Time between sampler ticks")
	fs.Float64("min-confidence", 0, "Minimum confidence for a detection (0.0-1.0)")

	conf.BindFlag(fs, "camera", "camera.kind")
	conf.BindFlag(fs, "device", "camera.device")
	conf.BindFlag(fs, "user", "reporting.userid")
	conf.BindFlag(fs, "listen", "webserver.listen")
	conf.BindFlag(fs, "api", "webserver.enabled")
	conf.BindFlag(fs, "interval", "session.sampleinterval")
	conf.BindFlag(fs, "min-confidence", "session.minconfidence")
}
