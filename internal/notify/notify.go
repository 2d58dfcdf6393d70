package notify

import (
	"context"
	"fmt"
	"strings"

	"atelier-checkout/internal/middleware"
	"atelier-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification kinds, used for logging and metrics.
const (
	KindOrderConfirmation = "order_confirmation"
	KindOrderShipped      = "order_shipped"
	KindOrderDelivered    = "order_delivered"
	KindWelcome           = "welcome"
	KindPasswordReset     = "password_reset"
)

// Message is a plain-text email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// OrderConfirmation is the content of an order confirmation email.
type OrderConfirmation struct {
	OrderNumber     string
	CustomerName    string
	Items           []model.OrderItem
	Subtotal        decimal.Decimal
	Shipping        decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress model.Address
}

// ShipmentNotice is the content of a shipped email.
type ShipmentNotice struct {
	OrderNumber    string
	CustomerName   string
	TrackingNumber string
}

// DeliveryNotice is the content of a delivered email.
type DeliveryNotice struct {
	OrderNumber  string
	CustomerName string
}

// Welcome is the content of a welcome email.
type Welcome struct {
	Name string
}

// PasswordReset is the content of a password reset email.
type PasswordReset struct {
	Name     string
	ResetURL string
}

// Dispatcher sends typed transactional emails. Callers treat errors as
// non-fatal: nothing here rolls back order state.
type Dispatcher interface {
	SendOrderConfirmation(ctx context.Context, to string, c OrderConfirmation) error
	SendOrderShipped(ctx context.Context, to string, n ShipmentNotice) error
	SendOrderDelivered(ctx context.Context, to string, n DeliveryNotice) error
	SendWelcome(ctx context.Context, to string, w Welcome) error
	SendPasswordReset(ctx context.Context, to string, p PasswordReset) error
}

// dispatcher renders messages and hands them to a Sender.
type dispatcher struct {
	sender Sender
	from   string
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher sending from the given address.
func NewDispatcher(sender Sender, from string, logger zerolog.Logger) Dispatcher {
	return &dispatcher{
		sender: sender,
		from:   from,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

func (d *dispatcher) send(ctx context.Context, kind, to, subject, text string) error {
	if strings.TrimSpace(to) == "" {
		middleware.RecordNotification(kind, false)
		return fmt.Errorf("failed to send %s: recipient is required", kind)
	}

	err := d.sender.Send(ctx, Message{
		From:    d.from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
	})
	middleware.RecordNotification(kind, err == nil)
	if err != nil {
		d.logger.Error().Err(err).Str("kind", kind).Str("to", to).Msg("failed to send email")
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}

	d.logger.Info().Str("kind", kind).Str("to", to).Msg("email sent")
	return nil
}

// SendOrderConfirmation emails the order summary after payment.
func (d *dispatcher) SendOrderConfirmation(ctx context.Context, to string, c OrderConfirmation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\nThank you for your order %s.\n\n", greeting(c.CustomerName), c.OrderNumber)
	for _, item := range c.Items {
		name := item.ProductName
		if item.VariantLabel != "" {
			name = fmt.Sprintf("%s (%s)", name, item.VariantLabel)
		}
		fmt.Fprintf(&b, "  %d x %s  €%s\n", item.Quantity, name, item.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nSubtotal: €%s\n", c.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Shipping: €%s\n", c.Shipping.StringFixed(2))
	fmt.Fprintf(&b, "Total:    €%s\n\n", c.Total.StringFixed(2))
	b.WriteString("Shipping to:\n")
	b.WriteString(formatAddress(c.ShippingAddress))

	return d.send(ctx, KindOrderConfirmation, to, fmt.Sprintf("Order confirmation %s", c.OrderNumber), b.String())
}

// SendOrderShipped tells the customer their parcel is on its way.
func (d *dispatcher) SendOrderShipped(ctx context.Context, to string, n ShipmentNotice) error {
	text := fmt.Sprintf("%s,\n\nYour order %s has shipped.\n", greeting(n.CustomerName), n.OrderNumber)
	if n.TrackingNumber != "" {
		text += fmt.Sprintf("Tracking number: %s\n", n.TrackingNumber)
	}
	return d.send(ctx, KindOrderShipped, to, fmt.Sprintf("Your order %s has shipped", n.OrderNumber), text)
}

// SendOrderDelivered confirms delivery.
func (d *dispatcher) SendOrderDelivered(ctx context.Context, to string, n DeliveryNotice) error {
	text := fmt.Sprintf("%s,\n\nYour order %s has been delivered. We hope you enjoy it.\n", greeting(n.CustomerName), n.OrderNumber)
	return d.send(ctx, KindOrderDelivered, to, fmt.Sprintf("Your order %s has been delivered", n.OrderNumber), text)
}

// SendWelcome greets a new account.
func (d *dispatcher) SendWelcome(ctx context.Context, to string, w Welcome) error {
	text := fmt.Sprintf("%s,\n\nWelcome to Atelier. Your account is ready.\n", greeting(w.Name))
	return d.send(ctx, KindWelcome, to, "Welcome to Atelier", text)
}

// SendPasswordReset sends a password reset link.
func (d *dispatcher) SendPasswordReset(ctx context.Context, to string, p PasswordReset) error {
	if p.ResetURL == "" {
		return fmt.Errorf("failed to send %s: reset URL is required", KindPasswordReset)
	}
	text := fmt.Sprintf("%s,\n\nUse the link below to choose a new password:\n%s\n\nIf you did not ask for this, ignore this email.\n", greeting(p.Name), p.ResetURL)
	return d.send(ctx, KindPasswordReset, to, "Reset your password", text)
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Hello"
	}
	return "Hello " + name
}

func formatAddress(a model.Address) string {
	var lines []string
	for _, s := range []string{a.Name, a.Line1, a.Line2, strings.TrimSpace(a.PostalCode + " " + a.City), a.Country} {
		if strings.TrimSpace(s) != "" {
			lines = append(lines, "  "+s)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
