// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration. Every key needs a default so that
// environment variables can override it.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/wildwatch.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("inference.endpoint", "http://localhost:8000/api/v1/detect")
	viper.SetDefault("inference.model", "")
	viper.SetDefault("inference.timeout", 10*time.Second)
	viper.SetDefault("inference.uploadtimeout", 60*time.Second)

	viper.SetDefault("reporting.endpoint", "http://localhost:8000/api/v1/reports")
	viper.SetDefault("reporting.userid", "")
	viper.SetDefault("reporting.timeout", 30*time.Second)

	viper.SetDefault("session.sampleinterval", 2*time.Second)
	viper.SetDefault("session.cooldown", 10*time.Second)
	viper.SetDefault("session.minconfidence", 0.30)
	viper.SetDefault("session.minconditionconfidence", 0.0)

	viper.SetDefault("camera.kind", "ffmpeg")
	viper.SetDefault("camera.device", "/dev/video0")
	viper.SetDefault("camera.inputformat", "v4l2")
	viper.SetDefault("camera.ffmpegpath", "")
	viper.SetDefault("camera.width", 1280)
	viper.SetDefault("camera.height", 720)
	viper.SetDefault("camera.framerate", 2.0)
	viper.SetDefault("camera.quality", 85)
	viper.SetDefault("camera.starttimeout", 15*time.Second)

	viper.SetDefault("species.catalogpath", "")
	viper.SetDefault("species.cachettl", 24*time.Hour)

	viper.SetDefault("photostore.enabled", false)
	viper.SetDefault("photostore.endpoint", "localhost:9000")
	viper.SetDefault("photostore.accesskey", "")
	viper.SetDefault("photostore.secretkey", "")
	viper.SetDefault("photostore.bucket", "wildwatch-photos")
	viper.SetDefault("photostore.prefix", "live")
	viper.SetDefault("photostore.usessl", false)
	viper.SetDefault("photostore.publicurl", "")

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.minurgency", "low")
	viper.SetDefault("notification.requestsperminute", 30)
	viper.SetDefault("notification.burst", 5)
	viper.SetDefault("notification.timeout", 10*time.Second)
	viper.SetDefault("notification.titletemplate", "")
	viper.SetDefault("notification.messagetemplate", "")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "wildwatch")
	viper.SetDefault("mqtt.topicprefix", "wildwatch")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.qos", 0)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "127.0.0.1:8089")
	viper.SetDefault("webserver.metrics", true)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
