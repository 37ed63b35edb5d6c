package telemetry_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kvetinski/identity/internal/telemetry"
)

func TestNilMetricsAreNoop(t *testing.T) {
	var m *telemetry.Metrics

	m.ObserveRPC("Register", "OK", time.Millisecond)
	m.IncRPCInFlight()
	m.DecRPCInFlight()
	m.ObserveHTTP("/v1/register", "201", time.Millisecond)
	m.ObserveStore("memory", "insert", "ok", time.Millisecond)
	m.ObserveOperation("register", "ok")
	m.ObserveSMS("infobip", "ok", time.Millisecond)
}

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.ObserveOperation("register", "ok")
	m.ObserveOperation("register", "DuplicateAccount")
	m.ObserveOperation("register", "ok")
	m.ObserveSMS("infobip", "error", 10*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "identity_operations_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 operation series, got %d", count)
	}

	count, err = testutil.GatherAndCount(reg, "identity_sms_sends_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 sms series, got %d", count)
	}
}
