package planner

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Risk model weights.
const (
	leadTimeWeight  = 0.7
	safeStock       = 500.0
	stockRiskWeight = 30.0
	delayPenalty    = 5.0
	noDelay         = "none"
)

// Alert is a supply row with its risk score.
type Alert struct {
	storage.SupplyRow
	Risk float64 `json:"risk"`
}

// RiskScore rates one supply row. Longer lead times, thin stock and any
// reported delay all raise the score.
func RiskScore(row storage.SupplyRow) float64 {
	score := row.LeadTimeDays * leadTimeWeight
	score += math.Max(0, (safeStock-row.StockLevel)/safeStock) * stockRiskWeight
	if row.DelayReason != noDelay {
		score += delayPenalty
	}
	return round2(score)
}

// SupplyChainAlerts returns the riskiest supply rows, highest first.
func (p *Planner) SupplyChainAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = DefaultAlertLimit
	}
	rows, err := p.logistics.SupplyChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("supply chain alerts: %w", err)
	}

	alerts := make([]Alert, len(rows))
	for i, r := range rows {
		alerts[i] = Alert{SupplyRow: r, Risk: RiskScore(r)}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Risk > alerts[j].Risk
	})
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

// RiskMap scores every supplied product by name. A product supplied from
// several rows keeps the score of the last one.
func (p *Planner) RiskMap(ctx context.Context) (map[string]float64, error) {
	rows, err := p.logistics.SupplyChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("risk map: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.ProductName] = RiskScore(r)
	}
	return out, nil
}
