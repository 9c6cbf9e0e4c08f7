package anacrolix

import (
	"fmt"
	"testing"

	"torrentsession/internal/domain"
)

func TestPopAlertsPreservesOrderAndBound(t *testing.T) {
	e := New(Config{})
	for i := 0; i < 5; i++ {
		e.queueAlert(domain.ExternalIPAlert{IP: fmt.Sprintf("192.0.2.%d", i)})
	}

	first := e.PopAlerts(3)
	if len(first) != 3 {
		t.Fatalf("first drain = %d alerts, want 3", len(first))
	}
	for i, a := range first {
		ip, ok := a.(domain.ExternalIPAlert)
		if !ok || ip.IP != fmt.Sprintf("192.0.2.%d", i) {
			t.Fatalf("alert %d = %#v", i, a)
		}
	}

	rest := e.PopAlerts(100)
	if len(rest) != 2 {
		t.Fatalf("second drain = %d alerts, want 2", len(rest))
	}
	if got := e.PopAlerts(100); len(got) != 0 {
		t.Fatalf("empty drain = %d alerts", len(got))
	}
}

func TestPopAlertsZeroMaxDrainsEverything(t *testing.T) {
	e := New(Config{})
	for i := 0; i < 4; i++ {
		e.queueAlert(domain.SessionStatsAlert{})
	}
	if got := e.PopAlerts(0); len(got) != 4 {
		t.Fatalf("drain with no bound = %d alerts, want 4", len(got))
	}
}

func TestQueueAlertOverflowReported(t *testing.T) {
	e := New(Config{})
	for i := 0; i < alertQueueCap+7; i++ {
		e.queueAlert(domain.SessionStatsAlert{})
	}

	drained := e.PopAlerts(alertQueueCap + 100)
	if len(drained) != alertQueueCap+1 {
		t.Fatalf("drained %d alerts, want %d", len(drained), alertQueueCap+1)
	}
	last, ok := drained[len(drained)-1].(domain.AlertsDroppedAlert)
	if !ok {
		t.Fatalf("trailing alert = %#v, want AlertsDroppedAlert", drained[len(drained)-1])
	}
	if last.Count != 7 {
		t.Fatalf("dropped count = %d, want 7", last.Count)
	}

	// Counter resets once reported.
	e.queueAlert(domain.SessionStatsAlert{})
	again := e.PopAlerts(10)
	if len(again) != 1 {
		t.Fatalf("post-overflow drain = %d alerts, want 1", len(again))
	}
}
