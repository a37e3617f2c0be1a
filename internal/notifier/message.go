package notifier

import (
	"fmt"
	"strings"

	"github.com/protein-tracker/stock-bot/internal/models"
)

// ShopProductURL is the storefront link template for notifications
var ShopProductURL = "https://shop.amul.com/en/product/%s"

// FormatRestockMessage builds the HTML notification sent when a
// subscribed product comes back in stock
func FormatRestockMessage(p models.Product) string {
	var msg strings.Builder

	msg.WriteString("🎉 <b>Stock Update!</b>\n\n")
	msg.WriteString(fmt.Sprintf("<b>%s</b>\n", p.Name))
	msg.WriteString("📊 Status: <b>Now Available</b>\n")
	msg.WriteString(fmt.Sprintf("💰 Price: <b>₹%d</b>\n", p.Price))

	if p.SKU != "" {
		msg.WriteString(fmt.Sprintf("🏷️ SKU: <code>%s</code>\n", p.SKU))
	}

	msg.WriteString("\n📍 You are receiving this notification because you subscribed to stock updates for this product.\n")

	if p.Alias != "" {
		msg.WriteString(fmt.Sprintf("\n🛒 <a href=\"%s\">Shop now</a>\n", fmt.Sprintf(ShopProductURL, p.Alias)))
	}

	msg.WriteString("\nℹ️ You will be notified again if this product goes out of stock and becomes available again.")

	return msg.String()
}
