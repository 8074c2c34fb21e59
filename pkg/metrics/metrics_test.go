package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	registry = nil
	require.Nil(t, New())
}

func TestNilMetricsMethodsAreNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveGeneration("1", "changed", time.Second)
		m.RecordAdded("1", 3)
		m.RecordModified("1", 1)
		m.RecordDeleted("1", 1)
		m.RecordArchiveSize("1", 1024)
		m.RecordReconnect("1")
	})
}

func TestNewReturnsUsableMetricsWhenEnabled(t *testing.T) {
	InitRegistry()
	defer func() { registry = nil }()

	m := New()
	require.NotNil(t, m)
	require.NotPanics(t, func() {
		m.RecordAdded("1", 2)
	})
}
