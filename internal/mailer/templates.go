package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/luxora/storefront-api/internal/model"
)

var orderTmpl = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html><body style="font-family: Georgia, serif; color: #1a1a1a;">
<h2>{{.Heading}}</h2>
<p>Dear {{.Name}},</p>
<p>{{.Body}}</p>
<p>Order <strong>{{.OrderNumber}}</strong> &middot; Total ${{.Total}}</p>
<p>Luxora</p>
</body></html>`))

// OrderMessage renders the customer email for an order event.
func OrderMessage(ev model.OrderEvent) (Message, error) {
	heading, body := "Thank you for your order", "We have received your order and will let you know when it ships."
	if ev.Type == model.OrderEventStatusChanged {
		heading = "Your order has been updated"
		body = fmt.Sprintf("Your order is now %s.", ev.Status)
	}

	var buf bytes.Buffer
	err := orderTmpl.Execute(&buf, map[string]string{
		"Heading":     heading,
		"Name":        ev.Name,
		"Body":        body,
		"OrderNumber": ev.OrderNumber,
		"Total":       ev.Total.StringFixed(2),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render order mail: %w", err)
	}

	return Message{
		To:      ev.Email,
		Subject: fmt.Sprintf("%s (%s)", heading, ev.OrderNumber),
		HTML:    buf.String(),
		Text:    fmt.Sprintf("Dear %s,\n\n%s\n\nOrder %s, total $%s\n", ev.Name, body, ev.OrderNumber, ev.Total.StringFixed(2)),
	}, nil
}
