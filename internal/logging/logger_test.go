package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestLogger_UsesRequestedComponentAndLevel(t *testing.T) {
	cfg := DefaultTestConfig()
	cfg.Component = "sync-tracker"

	logger := CreateTestLogger(t, cfg)
	AssertLoggerBasicProperties(t, logger, "sync-tracker")
	assert.Equal(t, cfg.Level, logger.GetEffectiveLevel("sync-tracker"))
}

func TestCreateTestContext_CarriesCorrelationID(t *testing.T) {
	ctx := CreateTestContext(TestCorrelationID1)
	AssertCorrelationIDInContext(t, ctx, TestCorrelationID1)

	bare := CreateTestContext("")
	AssertCorrelationIDInContext(t, bare, "")
}

func TestCreateTestFixtures_CoversEveryComponent(t *testing.T) {
	fixtures := CreateTestFixtures()
	require.Len(t, fixtures, 4)

	seen := make(map[string]bool)
	for _, f := range fixtures {
		seen[f.Component] = true
	}
	for _, want := range []string{"auth", "database", "api", "camera"} {
		assert.True(t, seen[want], "missing fixture for component %q", want)
	}
}

func TestWithCorrelationID_RoundTripsThroughLogger(t *testing.T) {
	logger := NewLogger("round-trip")
	withID := logger.WithCorrelationID(TestCorrelationID2)
	assert.Equal(t, TestCorrelationID2, withID.correlationID)
	assert.Equal(t, "round-trip", withID.component)
}

func TestCreateTestLogger_AcceptsEveryKnownComponentAndFormat(t *testing.T) {
	for _, component := range TestComponents() {
		for _, format := range TestFormats() {
			cfg := CreateTestLoggingConfig("info", format, true, false, "")
			cfg.Component = component
			logger := CreateTestLogger(t, &TestLoggerConfig{Component: component, Level: TestLogLevels()[2], Format: cfg.Format, ConsoleOutput: true})
			AssertLoggerBasicProperties(t, logger, component)
		}
	}
}
