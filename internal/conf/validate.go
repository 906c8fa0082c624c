// conf/validate.go
package conf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError collects every problem found in a settings tree.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings checks the loaded settings and normalises values that
// have a canonical form.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validateWebServer(&settings.WebServer, &ve)
	validateClassifier(&settings.Classifier, &ve)
	validateUploads(&settings.Uploads, &ve)
	validateOutput(&settings.Output, &ve)
	validateSecurity(&settings.Security, &ve)

	if settings.Imaging.MaxPixels <= 0 {
		ve.Errors = append(ve.Errors, "imaging.maxpixels must be positive")
	}
	if settings.Observability.Listen != "" && settings.Observability.Listen == ":"+settings.WebServer.Port {
		ve.Errors = append(ve.Errors, "observability.listen must differ from the web server port")
	}
	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry.dsn is required when telemetry is enabled")
	}
	if settings.Main.Timezone != "" && settings.Main.Timezone != "Local" {
		if _, err := time.LoadLocation(settings.Main.Timezone); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("main.timezone %q is not a valid location", settings.Main.Timezone))
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServer(ws *WebServerSettings, ve *ValidationError) {
	if err := validatePort(ws.Port); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("webserver.port %q: %v", ws.Port, err))
	}
	if ws.StaticDir == "" {
		ve.Errors = append(ve.Errors, "webserver.staticdir must not be empty")
	}
	if ws.MaxUploadMB <= 0 {
		ve.Errors = append(ve.Errors, "webserver.maxuploadmb must be positive")
	}
	if ws.MaxConnections < 0 {
		ve.Errors = append(ve.Errors, "webserver.maxconnections must not be negative")
	}
	if ws.ReadTimeout < 0 || ws.WriteTimeout < 0 {
		ve.Errors = append(ve.Errors, "webserver timeouts must not be negative")
	}
}

func validateClassifier(c *ClassifierSettings, ve *ValidationError) {
	if c.ModelPath == "" {
		ve.Errors = append(ve.Errors, "classifier.modelpath must not be empty")
	}
	if c.Threads < 0 {
		ve.Errors = append(ve.Errors, "classifier.threads must not be negative")
	}
	if c.CacheTTL < 0 {
		ve.Errors = append(ve.Errors, "classifier.cachettl must not be negative")
	}
}

func validateUploads(u *UploadSettings, ve *ValidationError) {
	u.Naming = strings.ToLower(strings.TrimSpace(u.Naming))
	switch u.Naming {
	case "":
		u.Naming = NamingOriginal
	case NamingOriginal, NamingUnique:
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("uploads.naming %q must be %q or %q", u.Naming, NamingOriginal, NamingUnique))
	}
}

func validateOutput(o *OutputSettings, ve *ValidationError) {
	switch {
	case o.SQLite.Enabled && o.MySQL.Enabled:
		ve.Errors = append(ve.Errors, "only one of output.sqlite and output.mysql can be enabled")
	case !o.SQLite.Enabled && !o.MySQL.Enabled:
		ve.Errors = append(ve.Errors, "one of output.sqlite or output.mysql must be enabled")
	}
	if o.SQLite.Enabled && o.SQLite.Path == "" {
		ve.Errors = append(ve.Errors, "output.sqlite.path must not be empty")
	}
	if o.MySQL.Enabled {
		if o.MySQL.Host == "" || o.MySQL.Database == "" || o.MySQL.Username == "" {
			ve.Errors = append(ve.Errors, "output.mysql requires host, database and username")
		}
		if _, err := strconv.Atoi(o.MySQL.Port); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("output.mysql.port %q is not numeric", o.MySQL.Port))
		}
	}
}

func validateSecurity(s *SecuritySettings, ve *ValidationError) {
	s.PasswordHash = strings.ToLower(strings.TrimSpace(s.PasswordHash))
	if s.PasswordHash == "" {
		s.PasswordHash = HashSHA256
	}
	if err := validateHashAlgorithm(s.PasswordHash); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("security.passwordhash: %v", err))
	}
	if s.SessionSecret == "" {
		// An ephemeral secret invalidates sessions on restart
		GetLogger().Warn("security.sessionsecret is empty, generating an ephemeral secret")
		s.SessionSecret = GenerateRandomSecret()
	}
	if s.SessionMaxAge <= 0 {
		ve.Errors = append(ve.Errors, "security.sessionmaxage must be positive")
	}
	if s.RateLimit <= 0 || s.RateBurst <= 0 {
		ve.Errors = append(ve.Errors, "security.ratelimit and security.rateburst must be positive")
	}
}
