package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// LoyaltyDiscounts maps loyalty tiers to their order discount. Other tiers
// get none.
var LoyaltyDiscounts = map[string]float64{
	"Bronze":   0,
	"Silver":   0.05,
	"Gold":     0.10,
	"Platinum": 0.12,
}

// Quote prices an order line.
type Quote struct {
	Product  storage.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Discount float64         `json:"discount"`
	Subtotal float64         `json:"subtotal"`
	Total    float64         `json:"total"`
}

// Quote prices quantity units of productID for a customer of loyaltyTier.
// It returns nil without error for an unknown product. Quantities below one
// are priced as one.
func (p *Planner) Quote(ctx context.Context, productID string, quantity int, loyaltyTier string) (*Quote, error) {
	product, err := p.products.GetByID(ctx, productID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	if quantity < 1 {
		quantity = 1
	}
	var price float64
	if product.UnitPrice != nil {
		price = *product.UnitPrice
	}
	discount := LoyaltyDiscounts[loyaltyTier]
	subtotal := price * float64(quantity)

	return &Quote{
		Product:  *product,
		Quantity: quantity,
		Discount: discount,
		Subtotal: round2(subtotal),
		Total:    round2(subtotal * (1 - discount)),
	}, nil
}
