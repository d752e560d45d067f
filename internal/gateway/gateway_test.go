package gateway

import (
	"context"
	"testing"

	"github.com/MrWong99/ekivoice/internal/availability"
)

// upMonitor returns a monitor that has successfully probed the given
// service once, so the gateway under test sees it as available.
func upMonitor(t *testing.T, kind availability.Kind, baseURL string) *availability.Monitor {
	t.Helper()
	m := availability.NewMonitor([]availability.Endpoint{{Kind: kind, BaseURL: baseURL}})
	if !m.ProbeAll(context.Background()) {
		t.Fatalf("health probe for %s failed", kind)
	}
	return m
}

// downMonitor returns a monitor that has never probed, so every
// service reads as unavailable.
func downMonitor(kind availability.Kind, baseURL string) *availability.Monitor {
	return availability.NewMonitor([]availability.Endpoint{{Kind: kind, BaseURL: baseURL}})
}
