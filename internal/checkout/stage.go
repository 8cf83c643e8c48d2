// Package checkout walks a customer from the cart to a paid order.
package checkout

// Stage is one step of the checkout wizard. It is never stored; Current
// derives it from the cart and order on every request.
type Stage int

const (
	StageCart Stage = iota
	StageInfo
	StageShippingPayment
	StageConfirm
)

var stagePaths = [...]string{
	StageCart:            "/cart",
	StageInfo:            "/checkout/info",
	StageShippingPayment: "/checkout/shipping",
	StageConfirm:         "/checkout/confirm",
}

var stageNames = [...]string{
	StageCart:            "cart",
	StageInfo:            "info",
	StageShippingPayment: "shipping_payment",
	StageConfirm:         "confirm",
}

// Path is the route serving the stage.
func (s Stage) Path() string { return stagePaths[s] }

func (s Stage) String() string { return stageNames[s] }

// State is what the stage of a request is derived from.
type State struct {
	CartEmpty        bool
	HasOpenOrder     bool
	Paid             bool
	ShippingComplete bool
}

// Current returns the furthest stage the state allows.
func Current(st State) Stage {
	switch {
	case st.Paid:
		return StageConfirm
	case st.CartEmpty || !st.HasOpenOrder:
		return StageCart
	case !st.ShippingComplete:
		return StageInfo
	default:
		return StageShippingPayment
	}
}

// Guard reports whether requested may be served in st. When it may not,
// redirect is the path of the stage to send the customer back to.
func Guard(requested Stage, st State) (redirect string, ok bool) {
	if requested == StageCart {
		return "", true
	}
	if st.CartEmpty || !st.HasOpenOrder {
		return StageCart.Path(), false
	}
	if requested >= StageShippingPayment && !st.ShippingComplete {
		return StageInfo.Path(), false
	}
	return "", true
}
