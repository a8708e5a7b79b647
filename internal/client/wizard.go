package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"basecamp/internal/domain"
)

type Step int

const (
	StepCart Step = iota
	StepAddress
	StepPayment
	StepReview
	StepSubmitting
	StepAwaitingPayment
	StepPlaced
)

var stepNames = [...]string{"cart", "address", "payment", "review", "submitting", "awaiting_payment", "placed"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

var (
	ErrSubmissionInFlight = errors.New("client: order submission already in flight")
	ErrWrongStep          = errors.New("client: not allowed at this checkout step")
	ErrCartChanged        = errors.New("client: cart changed since review")
)

// Wizard drives checkout as an explicit state machine. The request token is
// minted on entering review and reused for every retry of that proposal.
type Wizard struct {
	cart *Cart

	mu          sync.Mutex
	step        Step
	address     *domain.Address
	method      domain.PaymentMethod
	token       string
	cartVersion uint64
	gateway     *GatewayOrder
	order       *domain.Order
}

func NewWizard(cart *Cart) *Wizard {
	return &Wizard{cart: cart}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token
}

// Order is the placed order once the wizard reaches StepPlaced.
func (w *Wizard) Order() (domain.Order, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.order == nil {
		return domain.Order{}, false
	}
	return *w.order, true
}

// PendingPayment is the gateway order the hosted widget is collecting for.
func (w *Wizard) PendingPayment() (GatewayOrder, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gateway == nil {
		return GatewayOrder{}, false
	}
	return *w.gateway, true
}

// rewind returns to s if the wizard is past it and drops the token.
func (w *Wizard) rewind(s Step) {
	if w.step > s {
		w.step = s
	}
	w.token = ""
}

func (w *Wizard) editable() error {
	switch w.step {
	case StepSubmitting, StepAwaitingPayment:
		return ErrSubmissionInFlight
	case StepPlaced:
		return ErrWrongStep
	}
	return nil
}

// CartChanged sends the wizard back to the cart step.
func (w *Wizard) CartChanged() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.rewind(StepCart)
	return nil
}

func (w *Wizard) SetAddress(a domain.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.address = &a
	w.rewind(StepAddress)
	return nil
}

func (w *Wizard) SetPaymentMethod(m domain.PaymentMethod) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.method = m
	w.rewind(StepPayment)
	return nil
}

// Next validates the current step and advances.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepCart:
		if len(w.cart.Lines()) == 0 {
			return domain.ErrEmptyCart
		}
	case StepAddress:
		if w.address == nil {
			return domain.ErrNoShippingAddress
		}
		if f := w.address.MissingField(); f != "" {
			return fmt.Errorf("%w: %s missing", domain.ErrNoShippingAddress, f)
		}
	case StepPayment:
		if !w.method.Valid() {
			return domain.Invalid("paymentMethod", "must be COD or GATEWAY")
		}
		if w.token == "" {
			w.token = uuid.NewString()
		}
		w.cartVersion = w.cart.Version()
	default:
		return ErrWrongStep
	}
	w.step++
	return nil
}

// Back moves one step back without discarding choices.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepCart || w.step >= StepSubmitting {
		return ErrWrongStep
	}
	w.step--
	return nil
}

// BeginSubmit enters StepSubmitting and returns the token to send.
func (w *Wizard) BeginSubmit() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepReview:
	case StepSubmitting, StepAwaitingPayment:
		return "", ErrSubmissionInFlight
	default:
		return "", ErrWrongStep
	}
	if w.cart.Version() != w.cartVersion {
		w.rewind(StepCart)
		return "", ErrCartChanged
	}
	w.step = StepSubmitting
	return w.token, nil
}

// EndSubmit settles a submission: success places the order, failure returns
// to review with the same token so a retry cannot create a second order.
func (w *Wizard) EndSubmit(o *domain.Order, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSubmitting {
		return
	}
	if err != nil || o == nil {
		w.step = StepReview
		return
	}
	w.order = o
	w.step = StepPlaced
}

// SubmitCOD places a cash-on-delivery order through api.
func (w *Wizard) SubmitCOD(ctx context.Context, api API) (domain.Order, error) {
	w.mu.Lock()
	method, addr := w.method, w.address
	w.mu.Unlock()
	if method != domain.PaymentCOD {
		return domain.Order{}, domain.Invalid("paymentMethod", "must be COD")
	}

	token, err := w.BeginSubmit()
	if err != nil {
		return domain.Order{}, err
	}
	o, err := api.PlaceCOD(ctx, addr.ID, token)
	if err != nil {
		w.EndSubmit(nil, err)
		return domain.Order{}, w.resync(ctx, err)
	}
	w.EndSubmit(&o, nil)
	return o, nil
}

// resync handles a stock shortfall reported by the server: the cart is
// reloaded so it shows what is still available and the wizard restarts at
// the cart step. Other errors pass through.
func (w *Wizard) resync(ctx context.Context, err error) error {
	if !errors.Is(err, domain.ErrInsufficientStock) {
		return err
	}
	rerr := w.cart.Refresh(ctx)
	w.mu.Lock()
	w.gateway = nil
	w.rewind(StepCart)
	w.mu.Unlock()
	if rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

// BeginGateway creates the remote payment order for the reviewed proposal.
// The wizard then waits in StepAwaitingPayment for the widget's outcome:
// CompleteGateway, FailGateway or Dismiss.
func (w *Wizard) BeginGateway(ctx context.Context, api API) (GatewayOrder, error) {
	w.mu.Lock()
	method, addr := w.method, w.address
	w.mu.Unlock()
	if method != domain.PaymentGateway {
		return GatewayOrder{}, domain.Invalid("paymentMethod", "must be GATEWAY")
	}

	if _, err := w.BeginSubmit(); err != nil {
		return GatewayOrder{}, err
	}
	g, err := api.StartGateway(ctx, addr.ID)
	if err != nil {
		w.EndSubmit(nil, err)
		return GatewayOrder{}, w.resync(ctx, err)
	}
	w.mu.Lock()
	w.gateway = &g
	w.step = StepAwaitingPayment
	w.mu.Unlock()
	return g, nil
}

// CompleteGateway sends the widget's success callback for verification. A
// rejected callback ends the attempt and returns to review; a transport
// failure keeps the payment open so the same callback can be sent again.
func (w *Wizard) CompleteGateway(ctx context.Context, api API, cb domain.GatewayCallback) (domain.Order, error) {
	w.mu.Lock()
	switch {
	case w.step == StepSubmitting:
		w.mu.Unlock()
		return domain.Order{}, ErrSubmissionInFlight
	case w.step != StepAwaitingPayment || w.gateway == nil:
		w.mu.Unlock()
		return domain.Order{}, ErrWrongStep
	case cb.ExternalOrderID != w.gateway.ExternalOrderID:
		w.mu.Unlock()
		return domain.Order{}, domain.Invalid("externalOrderId", "does not match the open payment")
	}
	w.step = StepSubmitting
	w.mu.Unlock()

	o, err := api.VerifyGateway(ctx, cb)

	w.mu.Lock()
	switch {
	case err == nil:
		w.order = &o
		w.gateway = nil
		w.step = StepPlaced
	case IsRejection(err):
		w.gateway = nil
		w.step = StepReview
	default:
		w.step = StepAwaitingPayment
	}
	w.mu.Unlock()
	if err != nil {
		return domain.Order{}, w.resync(ctx, err)
	}
	return o, nil
}

// FailGateway reports an explicit failure from the widget and returns to
// review so the buyer can try again. The wizard moves on even when the report
// is lost; the server expires intents that never resolve.
func (w *Wizard) FailGateway(ctx context.Context, api API, reason string) error {
	w.mu.Lock()
	if w.step != StepAwaitingPayment || w.gateway == nil {
		w.mu.Unlock()
		return ErrWrongStep
	}
	id := w.gateway.ExternalOrderID
	w.gateway = nil
	w.step = StepReview
	w.mu.Unlock()
	return api.ReportGatewayFailure(ctx, id, reason)
}

// Dismiss abandons the open payment without a server call, keeping the
// reviewed proposal. The intent stays unresolved and a later BeginGateway
// starts a fresh one.
func (w *Wizard) Dismiss() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepAwaitingPayment {
		return ErrWrongStep
	}
	w.gateway = nil
	w.step = StepReview
	return nil
}
