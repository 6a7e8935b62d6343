package service

import (
	"fmt"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// Registry is the static NetworkID -> aggregator dispatch table. It is built once at
// startup and read-only afterwards.
type Registry struct {
	aggregators map[entity.NetworkID]port.NetworkAggregator
	order       []entity.NetworkID
}

// NewRegistry indexes aggregators by network. Registering a network twice is an error.
func NewRegistry(aggregators ...port.NetworkAggregator) (*Registry, error) {
	r := &Registry{aggregators: make(map[entity.NetworkID]port.NetworkAggregator, len(aggregators))}
	for _, agg := range aggregators {
		id := agg.Network().ID
		if _, err := entity.ParseNetworkID(string(id)); err != nil {
			return nil, err
		}
		if _, dup := r.aggregators[id]; dup {
			return nil, fmt.Errorf("network %s registered twice", id)
		}
		r.aggregators[id] = agg
		r.order = append(r.order, id)
	}
	return r, nil
}

// Aggregator implements port.AggregatorRegistry.
func (r *Registry) Aggregator(id entity.NetworkID) (port.NetworkAggregator, bool) {
	agg, ok := r.aggregators[id]
	return agg, ok
}

// Networks implements port.AggregatorRegistry, in registration order.
func (r *Registry) Networks() []entity.NetworkConfig {
	out := make([]entity.NetworkConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.aggregators[id].Network())
	}
	return out
}
