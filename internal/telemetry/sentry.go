// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry
package telemetry

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/lesionscan/lesionscan/internal/buildinfo"
	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// DefaultEnvironment is used when telemetry.environment is empty.
const DefaultEnvironment = "production"

// DefaultFlushTimeout bounds Flush at shutdown.
const DefaultFlushTimeout = 2 * time.Second

var sentryInitialized atomic.Bool

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// InitSentry initializes the Sentry SDK and installs the error reporter.
// It does nothing unless telemetry is explicitly enabled.
func InitSentry(settings *conf.TelemetrySettings, info *buildinfo.Context) error {
	return initSentry(settings, info, nil)
}

func initSentry(settings *conf.TelemetrySettings, info *buildinfo.Context, transport sentry.Transport) error {
	if !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		GetLogger().Debug("telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.DSN == "" {
		return errors.Newf("telemetry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := settings.Environment
	if environment == "" {
		environment = DefaultEnvironment
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.DSN,
		SampleRate: 1.0,
		Debug:      false,

		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          info.Release(),

		BeforeSend: applyPrivacyFilters,
		Transport:  transport,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	configureSentryScope(info)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized.Store(true)

	GetLogger().Info("telemetry enabled",
		logger.String("environment", environment),
		logger.String("release", info.Release()))
	return nil
}

// configureSentryScope tags every event with platform information
func configureSentryScope(info *buildinfo.Context) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"name":    "lesionscan",
			"version": info.GetVersion(),
		})
		scope.SetContext("platform", map[string]any{
			"os":           runtime.GOOS,
			"architecture": runtime.GOARCH,
			"num_cpu":      runtime.NumCPU(),
			"go_version":   runtime.Version(),
		})
	})
}

// applyPrivacyFilters strips user, host and request data from an event
// before it leaves the process.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	return event
}

// Flush sends buffered events. It is a no-op when telemetry was not started.
func Flush(timeout time.Duration) {
	if !sentryInitialized.Load() {
		return
	}
	sentry.Flush(timeout)
}

// Shutdown flushes pending events and detaches the error reporter.
func Shutdown() {
	if !sentryInitialized.Load() {
		return
	}
	Flush(DefaultFlushTimeout)
	errors.SetTelemetryReporter(nil)
	sentryInitialized.Store(false)
}
