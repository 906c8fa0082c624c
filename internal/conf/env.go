package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/lesionscan/lesionscan/internal/errors"
)

// envBinding links a configuration key to an environment variable with an
// optional validator for its raw value.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

var envBindings = []envBinding{
	{"webserver.port", "LESIONSCAN_PORT", validatePort},
	{"webserver.staticdir", "LESIONSCAN_STATIC_DIR", nil},
	{"webserver.maxuploadmb", "LESIONSCAN_MAX_UPLOAD_MB", validatePositiveInt},
	{"classifier.modelpath", "LESIONSCAN_MODEL", nil},
	{"classifier.threads", "LESIONSCAN_THREADS", validateNonNegativeInt},
	{"output.sqlite.path", "LESIONSCAN_DB", nil},
	{"output.mysql.enabled", "LESIONSCAN_MYSQL_ENABLED", validateBool},
	{"output.mysql.username", "LESIONSCAN_MYSQL_USERNAME", nil},
	{"output.mysql.password", "LESIONSCAN_MYSQL_PASSWORD", nil},
	{"output.mysql.host", "LESIONSCAN_MYSQL_HOST", nil},
	{"output.mysql.port", "LESIONSCAN_MYSQL_PORT", validatePort},
	{"output.mysql.database", "LESIONSCAN_MYSQL_DATABASE", nil},
	{"security.sessionsecret", "LESIONSCAN_SESSION_SECRET", nil},
	{"security.passwordhash", "LESIONSCAN_PASSWORD_HASH", validateHashAlgorithm},
	{"logging.defaultlevel", "LESIONSCAN_LOG_LEVEL", nil},
	{"telemetry.enabled", "LESIONSCAN_TELEMETRY", validateBool},
	{"telemetry.dsn", "LESIONSCAN_SENTRY_DSN", nil},
	{"debug", "LESIONSCAN_DEBUG", validateBool},
}

// bindEnvVars binds every LESIONSCAN_* variable. Invalid values are still
// bound so ValidateSettings reports them; the returned error lists them for
// an early warning.
func bindEnvVars() error {
	var problems []string
	for _, b := range envBindings {
		if err := viper.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		if value, ok := os.LookupEnv(b.EnvVar); ok {
			if err := b.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("%s=%q: %v", b.EnvVar, value, err))
			}
		}
	}
	if len(problems) > 0 {
		return errors.Newf("invalid environment variables: %s", strings.Join(problems, "; ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validatePort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("port must be numeric")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

func validateBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateHashAlgorithm(value string) error {
	switch strings.ToLower(value) {
	case HashSHA256, HashBcrypt:
		return nil
	}
	return fmt.Errorf("must be %q or %q", HashSHA256, HashBcrypt)
}
