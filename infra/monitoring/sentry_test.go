package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/edgegrid/config"
	coremon "github.com/kilianp07/edgegrid/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{}, "controller")
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitorInvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "::not a dsn"}, "controller")
	assert.Error(t, err)
}

func TestSentryMonitorCaptures(t *testing.T) {
	// a syntactically valid DSN; nothing is sent before Flush times out
	m, err := NewSentryMonitor(config.SentryConfig{DSN: "https://key@localhost/1", Environment: "test"}, "controller")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.CaptureException(errors.New("boom"), map[string]string{"asset_id": "bat-01"})
		m.CaptureException(nil, nil)
		m.CapturePanic("kaboom", nil)
		m.Flush(10 * time.Millisecond)
	})
}
