package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// DeliveryMetrics describes how reliably love notes reach a region.
type DeliveryMetrics struct {
	Routing     *storage.RoutingRow `json:"routing"`
	SuccessRate *float64            `json:"successRate"`
}

// LoveMetrics is the global delivery dashboard.
type LoveMetrics struct {
	Delivery []storage.RegionDelivery `json:"delivery"`
	Routing  []storage.RoutingRow     `json:"routing"`
}

// Delivery returns routing and telemetry for region. Unknown regions and an
// empty region yield empty metrics.
func (p *Planner) Delivery(ctx context.Context, region string) (DeliveryMetrics, error) {
	var m DeliveryMetrics
	if region == "" {
		return m, nil
	}

	routing, err := p.logistics.Routing(ctx, region)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return m, fmt.Errorf("delivery metrics: %w", err)
	default:
		m.Routing = routing
	}

	m.SuccessRate, err = p.logistics.SuccessRate(ctx, region)
	if err != nil {
		return m, fmt.Errorf("delivery metrics: %w", err)
	}
	return m, nil
}

// LoveMetrics aggregates delivery per region and lists the routes with the
// highest failure rate.
func (p *Planner) LoveMetrics(ctx context.Context) (*LoveMetrics, error) {
	delivery, err := p.logistics.DeliveryByRegion(ctx)
	if err != nil {
		return nil, fmt.Errorf("love metrics: %w", err)
	}
	routing, err := p.logistics.RiskiestRoutes(ctx, RiskiestRouteLimit)
	if err != nil {
		return nil, fmt.Errorf("love metrics: %w", err)
	}
	if delivery == nil {
		delivery = []storage.RegionDelivery{}
	}
	if routing == nil {
		routing = []storage.RoutingRow{}
	}
	return &LoveMetrics{Delivery: delivery, Routing: routing}, nil
}
