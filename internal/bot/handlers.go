// Package bot implements the Telegram command surface. It talks only to
// the subscription store; the polling core picks up its effects on the
// next cycle.
package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/protein-tracker/stock-bot/internal/catalog"
	"github.com/protein-tracker/stock-bot/internal/models"
	"github.com/protein-tracker/stock-bot/internal/monitor"
	"github.com/protein-tracker/stock-bot/internal/notifier"
	"github.com/protein-tracker/stock-bot/internal/repository"
)

// Fetcher loads products from the upstream API when the catalog is empty
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Product, error)
}

type BotHandler struct {
	bot      *tgbotapi.BotAPI
	repo     *repository.SubscriptionRepository
	fetcher  Fetcher
	schedule monitor.Schedule
}

func NewBotHandler(bot *tgbotapi.BotAPI, repo *repository.SubscriptionRepository, fetcher Fetcher, schedule monitor.Schedule) *BotHandler {
	return &BotHandler{
		bot:      bot,
		repo:     repo,
		fetcher:  fetcher,
		schedule: schedule,
	}
}

// Commands describes the bot's command menu
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot and get welcome message"},
	{Command: "products", Description: "Browse and subscribe to products"},
	{Command: "mysubs", Description: "View your subscribed products"},
	{Command: "stock", Description: "Check current stock status of all products"},
}

// HandleUpdate handles incoming Telegram updates
func (h *BotHandler) HandleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.handleToggleCallback(update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if update.Message.IsCommand() {
		h.handleCommand(update.Message)
		return
	}

	h.sendMessage(update.Message.Chat.ID, "Use /products to browse products and subscribe to stock notifications.")
}

// handleCommand handles bot commands
func (h *BotHandler) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		h.handleStart(message)
	case "products":
		h.handleProducts(message)
	case "mysubs":
		h.handleMySubs(message)
	case "stock":
		h.handleStock(message)
	default:
		h.sendMessage(message.Chat.ID, "Unknown command. Use /products, /mysubs or /stock.")
	}
}

// handleStart registers the user and sends the welcome message
func (h *BotHandler) handleStart(message *tgbotapi.Message) {
	ctx := context.Background()

	if err := h.repo.EnsureUser(ctx, message.Chat.ID); err != nil {
		log.Printf("Failed to register user %d: %v", message.Chat.ID, err)
		h.sendMessage(message.Chat.ID, "An error occurred. Please try again later.")
		return
	}
	log.Printf("User registered: %d", message.Chat.ID)

	welcome := `Welcome! I'll help you track protein products.

Use /products to see available products and subscribe to stock notifications.`
	h.sendMessage(message.Chat.ID, welcome)
}

// handleProducts lists all products with subscription toggle buttons
func (h *BotHandler) handleProducts(message *tgbotapi.Message) {
	ctx := context.Background()
	chatID := message.Chat.ID

	products, err := h.loadProducts(ctx)
	if err != nil {
		log.Printf("Failed to load products: %v", err)
		h.sendMessage(chatID, "Unable to fetch products at the moment. Please try again later.")
		return
	}
	if len(products) == 0 {
		h.sendMessage(chatID, "No products available at the moment. Please try again later.")
		return
	}

	subscribed := h.subscribedSet(ctx, chatID)

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		status := "🔴 Out of Stock"
		if p.Available {
			status = "🟢 In Stock"
		}
		marker := ""
		if subscribed[p.ID] {
			marker = " ✅"
		}

		button := tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s - ₹%d (%s)%s", p.Name, p.Price, status, marker),
			"toggle_"+p.ID,
		)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{button})
	}

	msg := tgbotapi.NewMessage(chatID,
		"🛒 <b>Product Catalog</b>\n\n"+
			"📱 Select products to get notified when they're back in stock\n"+
			"👆 Click on a product to subscribe/unsubscribe\n\n"+
			"🟢 = In Stock | 🔴 = Out of Stock | ✅ = Subscribed")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)

	if _, err := h.bot.Send(msg); err != nil {
		log.Printf("Error sending product list: %v", err)
	}
}

// handleToggleCallback flips a subscription from an inline button press
func (h *BotHandler) handleToggleCallback(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	if _, err := h.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}

	productID := strings.TrimPrefix(query.Data, "toggle_")
	chatID := query.Message.Chat.ID

	if err := h.repo.EnsureUser(ctx, chatID); err != nil {
		log.Printf("Failed to ensure user %d: %v", chatID, err)
		return
	}

	product, ok := h.findProduct(ctx, productID)
	if !ok {
		h.editMessage(chatID, query.Message.MessageID, "Error: Product not found.")
		return
	}

	subscribed, err := h.repo.ToggleSubscription(ctx, chatID, productID)
	if err != nil {
		log.Printf("Failed to toggle subscription for %d/%s: %v", chatID, productID, err)
		h.editMessage(chatID, query.Message.MessageID, "An error occurred. Please try again later.")
		return
	}

	if !subscribed {
		log.Printf("User %d unsubscribed from product %s", chatID, productID)
		h.editMessage(chatID, query.Message.MessageID, fmt.Sprintf(
			"❌ <b>Unsubscribed from:</b>\n%s\n\n📵 You won't receive notifications for this product anymore.",
			product.Name))
		return
	}

	log.Printf("User %d subscribed to product %s", chatID, productID)
	status := "🔴 out of stock"
	if product.Available {
		status = "🟢 in stock"
	}
	h.editMessage(chatID, query.Message.MessageID, fmt.Sprintf(
		`✅ <b>Subscribed to:</b>
%s

📊 <b>Current Status:</b> %s
💰 <b>Price:</b> ₹%d

🔔 You will be notified when this product comes back in stock.`,
		product.Name, status, product.Price))
}

// handleMySubs shows the user's subscriptions grouped by status
func (h *BotHandler) handleMySubs(message *tgbotapi.Message) {
	ctx := context.Background()
	chatID := message.Chat.ID

	subs, products, err := h.repo.SubscriptionsFor(ctx, chatID)
	if err != nil {
		log.Printf("Failed to load subscriptions for %d: %v", chatID, err)
		h.sendMessage(chatID, "An error occurred. Please try again later.")
		return
	}

	if len(subs) == 0 {
		h.sendMessage(chatID, "You haven't subscribed to any products yet.\nUse /products to browse and subscribe to products.")
		return
	}

	var waitingForStock, waitingForRestock, currentlyInStock []string

	for _, sub := range subs {
		p := products[sub.ProductID]
		status := "🔴 Out of Stock"
		if p.Available {
			status = "🟢 In Stock"
		}

		info := fmt.Sprintf("• %s - ₹%d\n  Status: %s", p.Name, p.Price, status)
		if p.Available && p.Alias != "" {
			info += fmt.Sprintf("\n  🛒 <a href=\"%s\">Shop now</a>", fmt.Sprintf(notifier.ShopProductURL, p.Alias))
		}
		if sub.LastNotifiedAt != nil {
			info += fmt.Sprintf("\n  Last notification: %s", sub.LastNotifiedAt.Format("2006-01-02 15:04"))
		}

		switch {
		case p.Available:
			currentlyInStock = append(currentlyInStock, info)
		case sub.LastNotifiedAt != nil:
			waitingForRestock = append(waitingForRestock, info)
		default:
			waitingForStock = append(waitingForStock, info)
		}
	}

	var text strings.Builder
	text.WriteString("📬 <b>Your Subscriptions</b>\n\n")
	if len(waitingForStock) > 0 {
		text.WriteString("<b>🔄 Waiting for Stock:</b>\n" + strings.Join(waitingForStock, "\n\n") + "\n\n")
	}
	if len(waitingForRestock) > 0 {
		text.WriteString("<b>⏳ Waiting for Restock:</b>\n" + strings.Join(waitingForRestock, "\n\n") + "\n\n")
	}
	if len(currentlyInStock) > 0 {
		text.WriteString("<b>✅ Currently Available:</b>\n" + strings.Join(currentlyInStock, "\n\n") + "\n\n")
	}
	text.WriteString(strings.Repeat("─", 30) + "\n")
	text.WriteString("ℹ️ You will be notified when products come back in stock.\n")
	text.WriteString("📱 Use /products to manage your subscriptions.")

	h.sendMessage(chatID, text.String())
}

// handleStock shows the stock overview grouped by category and variant
func (h *BotHandler) handleStock(message *tgbotapi.Message) {
	ctx := context.Background()
	chatID := message.Chat.ID

	products, err := h.repo.AllProducts(ctx)
	if err != nil {
		log.Printf("Failed to load products: %v", err)
		h.sendMessage(chatID, "An error occurred while fetching stock status. Please try again later.")
		return
	}
	if len(products) == 0 {
		h.sendMessage(chatID, "No products found yet. Please try again after the next stock check.")
		return
	}

	var lastChecked time.Time
	grouped := make(map[string]map[string][]string)
	for _, p := range products {
		if p.LastChecked.After(lastChecked) {
			lastChecked = p.LastChecked
		}

		status := "🔴 Out of Stock"
		if p.Available {
			status = "🟢 In Stock"
		}
		line := status
		if pack := catalog.PackInfo(p.Name); pack != "" {
			line += " - " + pack
		}
		line += fmt.Sprintf(" - ₹%d", p.Price)

		if grouped[p.Category] == nil {
			grouped[p.Category] = make(map[string][]string)
		}
		grouped[p.Category][p.Variant] = append(grouped[p.Category][p.Variant], line)
	}

	var text strings.Builder
	text.WriteString("📊 <b>Product Categories</b>\n\n")

	for _, cat := range catalog.Categories {
		variants, ok := grouped[cat.Name]
		if !ok {
			continue
		}

		text.WriteString(fmt.Sprintf("<b>%s %s</b>\n\n", cat.Emoji, cat.Name))
		for _, variant := range cat.Variants {
			lines := variants[variant]
			if len(lines) == 0 {
				continue
			}
			sort.Strings(lines)
			text.WriteString(fmt.Sprintf("<b>%s:</b>\n", variant))
			for _, line := range lines {
				text.WriteString("• " + line + "\n")
			}
			text.WriteString("\n")
		}
	}

	text.WriteString(strings.Repeat("─", 30) + "\n")
	if !lastChecked.IsZero() {
		text.WriteString(fmt.Sprintf("🕐 <b>Last updated:</b> %s\n", lastChecked.Format("2006-01-02 15:04")))
	}
	interval := h.schedule.Interval(time.Now())
	text.WriteString(fmt.Sprintf("⏰ <b>Next check in:</b> %d minutes (around %s)",
		int(interval.Minutes()), time.Now().Add(interval).Format("15:04")))

	h.sendMessage(chatID, text.String())
}

// loadProducts reads the catalog from the store, falling back to a live
// fetch when nothing has been observed yet
func (h *BotHandler) loadProducts(ctx context.Context) ([]models.Product, error) {
	products, err := h.repo.AllProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 || h.fetcher == nil {
		return products, nil
	}

	log.Println("No products in database, fetching from upstream...")
	fetched, err := h.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range fetched {
		if err := h.repo.UpsertProduct(ctx, p); err != nil {
			return nil, err
		}
		if err := h.repo.UpdateBaseline(ctx, p.ID, p.Available, p.LastChecked); err != nil {
			return nil, err
		}
	}
	log.Printf("Added %d products to database", len(fetched))

	return h.repo.AllProducts(ctx)
}

// subscribedSet returns the product ids this chat subscribes to
func (h *BotHandler) subscribedSet(ctx context.Context, chatID int64) map[string]bool {
	subs, _, err := h.repo.SubscriptionsFor(ctx, chatID)
	if err != nil {
		log.Printf("Failed to load subscriptions for %d: %v", chatID, err)
		return nil
	}

	set := make(map[string]bool, len(subs))
	for _, s := range subs {
		set[s.ProductID] = true
	}
	return set
}

// findProduct looks one product up by id
func (h *BotHandler) findProduct(ctx context.Context, productID string) (models.Product, bool) {
	products, err := h.repo.AllProducts(ctx)
	if err != nil {
		log.Printf("Failed to load products: %v", err)
		return models.Product{}, false
	}
	for _, p := range products {
		if p.ID == productID {
			return p, true
		}
	}
	return models.Product{}, false
}

// sendMessage sends an HTML message to a chat
func (h *BotHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := h.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// editMessage replaces an inline-keyboard message with a result text
func (h *BotHandler) editMessage(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := h.bot.Send(edit); err != nil {
		log.Printf("Error editing message: %v", err)
	}
}
