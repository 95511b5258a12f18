package ports

import (
	"context"

	"eqms/internal/domain/capa"
)

// Notifier publishes committed domain events to interested parties.
// Delivery is best effort; callers log failures and move on.
type Notifier interface {
	Publish(ctx context.Context, event capa.DomainEvent) error
}

// GatePolicySource yields the gate policy in force at call time.
type GatePolicySource interface {
	Current() capa.GatePolicy
}

// StaticGatePolicy serves a fixed policy.
type StaticGatePolicy capa.GatePolicy

func (p StaticGatePolicy) Current() capa.GatePolicy {
	return capa.GatePolicy(p)
}
