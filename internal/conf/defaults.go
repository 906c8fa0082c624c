// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers a default for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "lesionscan")
	viper.SetDefault("main.timezone", "Local")

	viper.SetDefault("webserver.port", "5000")
	viper.SetDefault("webserver.staticdir", "static")
	viper.SetDefault("webserver.maxuploadmb", 16)
	viper.SetDefault("webserver.maxconnections", 0)
	viper.SetDefault("webserver.readtimeout", 30*time.Second)
	viper.SetDefault("webserver.writetimeout", 60*time.Second)

	viper.SetDefault("classifier.modelpath", "model/hybrid_model.tflite")
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.cachettl", 10*time.Minute)

	viper.SetDefault("imaging.maxpixels", 40_000_000)

	viper.SetDefault("uploads.naming", NamingOriginal)
	viper.SetDefault("uploads.minfreemb", 100)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "lesionscan.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "lesionscan")

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionpath", "")
	viper.SetDefault("security.sessionmaxage", 7*24*time.Hour)
	viper.SetDefault("security.securecookie", false)
	viper.SetDefault("security.passwordhash", HashSHA256)
	viper.SetDefault("security.ratelimit", 10.0)
	viper.SetDefault("security.rateburst", 20)

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", "logs/lesionscan.log")
	viper.SetDefault("logging.fileoutput.level", "info")

	viper.SetDefault("observability.enabled", true)
	viper.SetDefault("observability.listen", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")
}
