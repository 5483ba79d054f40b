package mailer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/luxora/storefront-api/internal/model"
)

func TestOrderMessage(t *testing.T) {
	ev := model.OrderEvent{
		Type:        model.OrderEventPlaced,
		OrderID:     uuid.New(),
		OrderNumber: "LUX-12345678-AB12",
		Email:       "jane@example.com",
		Name:        "Jane <Doe>",
		Total:       decimal.RequireFromString("3130.92"),
		Status:      model.OrderStatusPending,
	}

	msg, err := OrderMessage(ev)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Thank you for your order (LUX-12345678-AB12)", msg.Subject)
	assert.Contains(t, msg.HTML, "Jane &lt;Doe&gt;")
	assert.Contains(t, msg.Text, "total $3130.92")

	ev.Type = model.OrderEventStatusChanged
	ev.Status = model.OrderStatusShipped
	msg, err = OrderMessage(ev)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Your order is now shipped.")
}

func TestBuildMsg(t *testing.T) {
	_, err := buildMsg("Luxora <orders@luxora.com>", Message{To: "not an address"})
	assert.Error(t, err)

	msg, err := buildMsg("Luxora <orders@luxora.com>", Message{To: "jane@example.com", Subject: "Hi", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi"}, msg.GetGenHeader(mail.HeaderSubject))
}
