package checkout

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/wichananm65/checkout-backend/internal/auth"
	"github.com/wichananm65/checkout-backend/internal/cart"
	"github.com/wichananm65/checkout-backend/internal/destination"
	"github.com/wichananm65/checkout-backend/internal/order"
	"github.com/wichananm65/checkout-backend/internal/payment"
	"github.com/wichananm65/checkout-backend/internal/product"
	"github.com/wichananm65/checkout-backend/internal/session"
)

// Handler serves the cart page and the checkout stages.
type Handler struct {
	service  *Service
	carts    *cart.Service
	sessions session.Provider
	log      *zap.Logger
}

func NewHandler(s *Service, carts *cart.Service, sessions session.Provider, log *zap.Logger) *Handler {
	return &Handler{service: s, carts: carts, sessions: sessions, log: log}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/cart", h.getCart)
	app.Post("/cart", h.postCart)
	app.Post("/cart/items", h.addCartItem)

	app.Get("/checkout/info", h.getInfo)
	app.Post("/checkout/info", h.postInfo)
	app.Get("/checkout/shipping", h.getShipping)
	app.Get("/checkout/confirm", h.getConfirm)
}

// request payloads

type cartUpdateRequest struct {
	IDChangedInput *int `json:"idChangedInput"`
	Value          *int `json:"value"`
	OrderItemID    *int `json:"orderItemId"`
}

type cartAddRequest struct {
	ListingID int `json:"listingId"`
	Quantity  int `json:"quantity"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	sess, err := h.sessions.Load(c)
	if err != nil {
		return err
	}
	current, _, err := h.carts.Load(sess)
	if err != nil {
		return h.fail(c, err)
	}

	items := make([]cart.DisplayItem, 0, len(current.OrderItems))
	for item, err := range h.carts.SnapshotForDisplay(c.UserContext(), current) {
		if err != nil {
			return h.fail(c, err)
		}
		items = append(items, item)
	}
	return c.JSON(fiber.Map{
		"cart_items": items,
		"total":      current.Total,
		"count":      current.Count,
	})
}

// postCart is the cart page form target. JSON bodies are partial updates from
// the page script; anything else is "proceed to checkout".
func (h *Handler) postCart(c *fiber.Ctx) error {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return h.proceed(c)
	}

	var req cartUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	sess, err := h.sessions.Load(c)
	if err != nil {
		return err
	}

	switch {
	case req.IDChangedInput != nil:
		if req.Value == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": map[string]string{"value": "value is required"}})
		}
		res, err := h.carts.SetQuantity(c.UserContext(), sess, *req.IDChangedInput, *req.Value)
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(res)
	case req.OrderItemID != nil:
		updated, _, err := h.carts.SoftDelete(c.UserContext(), sess, *req.OrderItemID)
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"total": updated.Total})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "idChangedInput or orderItemId is required"})
	}
}

func (h *Handler) proceed(c *fiber.Ctx) error {
	customerID, err := auth.CustomerID(c)
	if err != nil {
		return h.fail(c, err)
	}
	sess, err := h.sessions.Load(c)
	if err != nil {
		return err
	}
	_, _, err = h.service.Proceed(c.UserContext(), customerID, sess)
	if errors.Is(err, ErrEmptyCart) {
		return c.Redirect(StageCart.Path(), fiber.StatusFound)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.Redirect(StageInfo.Path(), fiber.StatusFound)
}

func (h *Handler) addCartItem(c *fiber.Ctx) error {
	var req cartAddRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	errs := map[string]string{}
	if req.ListingID <= 0 {
		errs["listingId"] = "listingId is required"
	}
	if req.Quantity < 1 {
		errs["quantity"] = "quantity must be >= 1"
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	sess, err := h.sessions.Load(c)
	if err != nil {
		return err
	}
	updated, err := h.carts.Add(c.UserContext(), sess, req.ListingID, req.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"count": updated.Count, "total": updated.Total})
}

// enter loads what the stage guard needs.
func (h *Handler) enter(c *fiber.Ctx) (Snapshot, session.Session, error) {
	customerID, err := auth.CustomerID(c)
	if err != nil {
		return Snapshot{}, nil, err
	}
	sess, err := h.sessions.Load(c)
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap, err := h.service.Snapshot(c.UserContext(), customerID, sess)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return snap, sess, nil
}

func (h *Handler) getInfo(c *fiber.Ctx) error {
	snap, _, err := h.enter(c)
	if err != nil {
		return h.fail(c, err)
	}
	if redirect, ok := Guard(StageInfo, snap.State); !ok {
		return c.Redirect(redirect, fiber.StatusFound)
	}

	dests, err := h.service.Destinations(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"form":         FormFromOrder(snap.Order),
		"destinations": dests,
		"order":        snap.Order,
	})
}

func (h *Handler) postInfo(c *fiber.Ctx) error {
	snap, _, err := h.enter(c)
	if err != nil {
		return h.fail(c, err)
	}
	if redirect, ok := Guard(StageInfo, snap.State); !ok {
		return c.Redirect(redirect, fiber.StatusFound)
	}

	var form ShippingForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	_, errs, err := h.service.SaveShipping(c.UserContext(), snap.Order, form)
	if err != nil {
		return h.fail(c, err)
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs, "form": form})
	}
	return c.Redirect(StageShippingPayment.Path(), fiber.StatusFound)
}

// getShipping rebuilds the order items from the current cart before opening
// the payment session, so cart edits made after proceeding are charged.
func (h *Handler) getShipping(c *fiber.Ctx) error {
	snap, _, err := h.enter(c)
	if err != nil {
		return h.fail(c, err)
	}
	if redirect, ok := Guard(StageShippingPayment, snap.State); !ok {
		return c.Redirect(redirect, fiber.StatusFound)
	}

	view, err := h.service.StartPayment(c.UserContext(), snap)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(view)
}

// getConfirm is the provider's success redirect. It finalizes only a paid
// session that was opened for the open order.
func (h *Handler) getConfirm(c *fiber.Ctx) error {
	snap, sess, err := h.enter(c)
	if err != nil {
		return h.fail(c, err)
	}
	if redirect, ok := Guard(StageConfirm, snap.State); !ok {
		return c.Redirect(redirect, fiber.StatusFound)
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "session_id is required"})
	}

	paid, items, err := h.service.Confirm(c.UserContext(), sess, snap.Order, sessionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"order": paid, "order_items": items})
}

// fail maps domain errors to responses. Anything unknown goes to the app's
// ErrorHandler.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var (
		conflict *order.InventoryConflictError
		provider *ProviderError
	)
	switch {
	case errors.Is(err, fiber.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	case errors.Is(err, ErrPaymentNotVerified):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"message": err.Error()})
	case errors.As(err, &provider), errors.Is(err, payment.ErrProviderUnavailable):
		h.log.Error("payment provider failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error(), "productId": conflict.ProductID})
	case errors.Is(err, order.ErrAlreadyPaid), errors.Is(err, order.ErrMissingProduct):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, product.ErrNotFound), errors.Is(err, order.ErrNotFound), errors.Is(err, destination.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, cart.ErrIndexOutOfRange), errors.Is(err, cart.ErrMalformed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	default:
		return err
	}
}
