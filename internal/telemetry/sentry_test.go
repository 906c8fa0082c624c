package telemetry

import (
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesionscan/lesionscan/internal/buildinfo"
	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
)

const testDSN = "https://public@sentry.example.com/1"

func TestInitSentryDisabled(t *testing.T) {
	require.NoError(t, InitSentry(&conf.TelemetrySettings{}, buildinfo.New("v1", "")))
	assert.False(t, sentryInitialized.Load())

	// Flush and Shutdown are safe without initialization
	Flush(time.Millisecond)
	Shutdown()
}

func TestInitSentryRequiresDSN(t *testing.T) {
	err := InitSentry(&conf.TelemetrySettings{Enabled: true}, buildinfo.New("v1", ""))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEnhancedErrorsAreReported(t *testing.T) {
	transport := newMockTransport()
	settings := &conf.TelemetrySettings{Enabled: true, DSN: testDSN, Environment: "test"}
	require.NoError(t, initSentry(settings, buildinfo.New("v1.0.0", ""), transport))
	t.Cleanup(Shutdown)

	_ = errors.Newf("open https://db.example.com/x?password=hunter2 failed").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()

	require.True(t, transport.waitForEvents(1, time.Second))
	event := transport.Events()[0]

	assert.Equal(t, "lesionscan@v1.0.0", event.Release)
	assert.Equal(t, "test", event.Environment)
	assert.Equal(t, "datastore", event.Tags["component"])
	assert.Equal(t, "database", event.Tags["category"])
	assert.NotContains(t, event.Message, "hunter2")
	assert.Empty(t, event.ServerName)
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.ServerName = "my-laptop"
	event.User = sentry.User{ID: "42", IPAddress: "10.0.0.1"}
	event.Message = "token=abcdef login failed"
	event.Extra = map[string]any{"component": "security", "username": "alice"}
	event.Tags = map[string]string{"hostname": "my-laptop", "category": "authentication"}
	event.Contexts = map[string]sentry.Context{"device": {}, "application": {}}
	event.Exception = []sentry.Exception{{Value: "secret=xyz"}}

	filtered := applyPrivacyFilters(event, nil)

	assert.Empty(t, filtered.ServerName)
	assert.True(t, filtered.User.IsEmpty())
	assert.NotContains(t, filtered.Message, "abcdef")
	assert.Equal(t, map[string]any{"component": "security"}, filtered.Extra)
	assert.NotContains(t, filtered.Tags, "hostname")
	assert.Contains(t, filtered.Tags, "category")
	assert.NotContains(t, filtered.Contexts, "device")
	assert.Contains(t, filtered.Contexts, "application")
	assert.Equal(t, "[REDACTED]", filtered.Exception[0].Value)
}
