package health

import (
	"context"
	"errors"
	"testing"
)

type mockProvider struct{ err error }

func (m *mockProvider) HealthCheck(_ context.Context) error { return m.err }

type mockCache struct{ err error }

func (m *mockCache) Ping(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockProvider{}, &mockCache{})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("expected healthy, got %s", report.Status)
	}
	if report.Checks["provider"] != CheckOK || report.Checks["cache"] != CheckOK {
		t.Errorf("unexpected checks: %v", report.Checks)
	}
}

func TestCheck_ProviderDown(t *testing.T) {
	svc := New(&mockProvider{err: errors.New("unreachable")}, nil)

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["provider"] != CheckError {
		t.Errorf("unexpected checks: %v", report.Checks)
	}
}

func TestCheck_CacheDown(t *testing.T) {
	svc := New(&mockProvider{}, &mockCache{err: errors.New("timeout")})

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["cache"] != CheckError {
		t.Errorf("unexpected checks: %v", report.Checks)
	}
}

func TestCheck_NilCacheSkipped(t *testing.T) {
	svc := New(&mockProvider{}, nil)

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("expected healthy, got %s", report.Status)
	}
	if _, ok := report.Checks["cache"]; ok {
		t.Error("disabled cache must not be checked")
	}
}
