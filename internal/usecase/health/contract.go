package health

import "context"

// ProviderChecker verifies model provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache connectivity.
type CachePinger interface {
	Ping(ctx context.Context) error
}
