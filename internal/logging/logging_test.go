package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWritersRoutesByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriters(&out, &errOut, false)

	logger.Debug("hidden")
	logger.Info("Navigating to page...")
	logger.Warn("FOUND WAKE UP BUTTON! Clicking it...")
	logger.Error("FAILURE: Could NOT verify app state")
	_ = logger.Sync()

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] Navigating to page...")
	assert.Contains(t, out.String(), "[ALERT] FOUND WAKE UP BUTTON!")
	assert.NotContains(t, out.String(), "FAILURE")
	assert.Contains(t, errOut.String(), "[ERROR] FAILURE: Could NOT verify app state")
}

func TestNewWithWritersVerbose(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriters(&out, &errOut, true)

	logger.Debug("exact success marker check failed")
	_ = logger.Sync()

	assert.Contains(t, out.String(), "[DEBUG] exact success marker check failed")
	assert.Empty(t, errOut.String())
}
