package utils

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Kariqs/amexan-storefront/models"
	"github.com/go-resty/resty/v2"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts a summary of each placed order to the admin chat.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return NewTelegramNotifierWithBaseURL(telegramAPI, token, chatID)
}

func NewTelegramNotifierWithBaseURL(baseURL, token, chatID string) *TelegramNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &TelegramNotifier{client: client, token: token, chatID: chatID}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) OrderPlaced(ctx context.Context, order models.Order) error {
	var result telegramResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetPathParam("token", n.token).
		SetBody(map[string]any{
			"chat_id": n.chatID,
			"text":    OrderSummary(order),
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram sendMessage failed with status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}

// OrderSummary is the plain-text order digest sent to admins.
func OrderSummary(order models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order #%d\n", order.ID)
	fmt.Fprintf(&b, "Customer: %s, %s\n", order.CustomerName, order.CustomerPhone)
	if order.CustomerAddress != "" {
		fmt.Fprintf(&b, "Address: %s\n", order.CustomerAddress)
	}
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d @ %s\n", item.Title, item.Quantity, FormatMoney(item.UnitPrice))
	}
	fmt.Fprintf(&b, "Total: %s", FormatMoney(order.TotalAmount))
	return b.String()
}
