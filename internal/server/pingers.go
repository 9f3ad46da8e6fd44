package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// StorePinger probes the relational record store. It satisfies the Pinger
// interface and is used by GET /api/ready.
type StorePinger struct {
	// ping is the probe function, typically a closure over the store's
	// database handle.
	ping func(ctx context.Context) error
}

// NewStorePinger constructs a StorePinger from a probe function.
func NewStorePinger(ping func(ctx context.Context) error) *StorePinger {
	return &StorePinger{ping: ping}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "sqlite" }

// Ping runs the probe function.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("store probe failed: %w", err)
	}
	return nil
}
