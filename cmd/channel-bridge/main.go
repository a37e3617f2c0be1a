// channel-bridge consumes stock events from Kafka and broadcasts restock
// announcements to a Telegram channel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/protein-tracker/stock-bot/internal/config"
	"github.com/protein-tracker/stock-bot/internal/models"
	"github.com/protein-tracker/stock-bot/internal/notifier"
)

func main() {
	log.Println("Starting Channel Bridge Service...")

	cfg := config.Load()
	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN environment variable is required")
	}
	if cfg.NotificationChannelID == 0 {
		log.Fatal("NOTIFICATION_CHANNEL_ID environment variable is required")
	}
	if cfg.KafkaBrokers == "" {
		log.Fatal("KAFKA_BROKERS environment variable is required")
	}

	telegramBot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}
	log.Printf("Authorized on account %s", telegramBot.Self.UserName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := &StockEventConsumer{
		ready:     make(chan bool),
		bot:       telegramBot,
		channelID: cfg.NotificationChannelID,
	}

	err = startConsumerGroup(ctx, strings.Split(cfg.KafkaBrokers, ","),
		cfg.KafkaStockEventsTopic, "channel-bridge", bridge)
	if err != nil {
		log.Fatalf("Failed to start consumer group: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Channel bridge is running...")
	<-sigChan
	log.Println("Shutdown signal received, stopping...")
	cancel()

	log.Println("Channel bridge stopped gracefully")
}

// StockEventConsumer implements sarama.ConsumerGroupHandler
type StockEventConsumer struct {
	ready     chan bool
	bot       *tgbotapi.BotAPI
	channelID int64
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *StockEventConsumer) Setup(sarama.ConsumerGroupSession) error {
	close(c.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *StockEventConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages()
func (c *StockEventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := c.processMessage(message.Value); err != nil {
			log.Printf("Error processing message: %v", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// processMessage broadcasts a became-available event to the channel.
// Out-of-stock transitions are kept off the channel.
func (c *StockEventConsumer) processMessage(data []byte) error {
	var event models.StockEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("Failed to unmarshal stock event: %v", err)
		return nil // Don't retry malformed messages
	}

	if event.ProductID == "" || !event.InStock {
		return nil
	}

	log.Printf("Broadcasting restock of %s to channel %d", event.ProductName, c.channelID)

	msg := tgbotapi.NewMessage(c.channelID, formatChannelMessage(event))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send channel message: %w", err)
	}
	return nil
}

// formatChannelMessage builds the channel broadcast text
func formatChannelMessage(event models.StockEvent) string {
	var msg strings.Builder

	msg.WriteString("🎉 <b>Back in Stock!</b>\n\n")
	msg.WriteString(fmt.Sprintf("<b>%s</b>\n", event.ProductName))
	msg.WriteString(fmt.Sprintf("💰 Price: <b>₹%d</b>\n", event.Price))
	if event.Alias != "" {
		msg.WriteString(fmt.Sprintf("\n🛒 <a href=\"%s\">Shop now</a>", fmt.Sprintf(notifier.ShopProductURL, event.Alias)))
	}

	return msg.String()
}

// startConsumerGroup starts the consumer group
func startConsumerGroup(ctx context.Context, brokers []string, topic, groupID string, consumer *StockEventConsumer) error {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	client, err := sarama.NewConsumerGroup(brokers, groupID, saramaConfig)
	if err != nil {
		return err
	}

	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				log.Printf("Error from consumer: %v", err)
				time.Sleep(5 * time.Second)
			}
			if ctx.Err() != nil {
				return
			}
			consumer.ready = make(chan bool)
		}
	}()

	<-consumer.ready
	log.Println("Sarama consumer up and running!...")
	return nil
}
