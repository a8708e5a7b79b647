package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"basecamp/internal/domain"
	"basecamp/internal/pricing"
	"basecamp/internal/repos"
	"basecamp/internal/validate"
)

// BuildProposal prices a cart for an address and payment method. It is pure:
// no identity, no persistence. Checks run in order and stop at the first failure.
func BuildProposal(lines []domain.CartLine, addr *domain.Address, method domain.PaymentMethod, rules pricing.Rules, currency string) (domain.Proposal, error) {
	if len(lines) == 0 {
		return domain.Proposal{}, domain.ErrEmptyCart
	}
	if addr == nil || addr.MissingField() != "" {
		return domain.Proposal{}, domain.ErrNoShippingAddress
	}
	if !method.Valid() {
		return domain.Proposal{}, domain.Invalid("paymentMethod", "must be COD or GATEWAY")
	}

	out := domain.Proposal{
		Lines:         make([]domain.OrderLine, 0, len(lines)),
		Address:       *addr,
		PaymentMethod: method,
		Currency:      currency,
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity < 1 {
			return domain.Proposal{}, domain.Invalid("quantity", "must be at least 1")
		}
		out.Lines = append(out.Lines, domain.OrderLine{
			ProductID:           l.ProductID,
			Size:                l.Size,
			Color:               l.Color,
			Quantity:            l.Quantity,
			UnitPriceAtPurchase: l.UnitPrice,
		})
		subtotal = subtotal.Add(l.Subtotal())
	}

	t := rules.Compute(subtotal)
	out.Subtotal, out.TaxTotal, out.DiscountTotal, out.GrandTotal = t.Subtotal, t.TaxTotal, t.DiscountTotal, t.GrandTotal
	return out, nil
}

// CheckoutService assembles proposals from the authoritative cart and address book.
type CheckoutService struct {
	Carts     *CartService
	Addresses *repos.AddressRepo
	Rules     pricing.Rules
	Currency  string
}

func NewCheckoutService(carts *CartService, addrs *repos.AddressRepo, rules pricing.Rules, currency string) *CheckoutService {
	return &CheckoutService{Carts: carts, Addresses: addrs, Rules: rules, Currency: currency}
}

// Prepare re-reads the cart and the address and builds the proposal. An
// unknown or foreign address id is treated as no address.
func (s *CheckoutService) Prepare(ctx context.Context, id domain.Identity, addressID string, method domain.PaymentMethod) (domain.Proposal, error) {
	lines, err := s.Carts.Snapshot(ctx, id)
	if err != nil {
		return domain.Proposal{}, err
	}

	var addr *domain.Address
	if aid, ok := validate.ID(addressID); ok && len(lines) > 0 {
		a, err := s.Addresses.Get(ctx, id.BuyerID, aid)
		switch {
		case err == nil:
			addr = &a
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Proposal{}, err
		}
	}
	return BuildProposal(lines, addr, method, s.Rules, s.Currency)
}

// ListAddresses serves the address picker.
func (s *CheckoutService) ListAddresses(ctx context.Context, id domain.Identity) ([]domain.Address, error) {
	return s.Addresses.List(ctx, id.BuyerID)
}
