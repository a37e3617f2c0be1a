// Package notifier delivers restock notifications to subscribers.
package notifier

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/protein-tracker/stock-bot/internal/models"
)

// Sender delivers one message to one chat
type Sender interface {
	Send(chatID int64, text string) error
}

// Dispatcher fans transition events out to their subscribers. Sends run
// with bounded concurrency and are paced to stay under the platform's
// messages-per-second ceiling. One recipient failing never blocks the
// rest of the batch.
type Dispatcher struct {
	sender      Sender
	concurrency int
	sendGap     time.Duration
}

// NewDispatcher creates a dispatcher. ratePerSecond caps overall send
// throughput; 0 disables pacing.
func NewDispatcher(sender Sender, concurrency, ratePerSecond int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	var gap time.Duration
	if ratePerSecond > 0 {
		gap = time.Second / time.Duration(ratePerSecond)
	}
	return &Dispatcher{
		sender:      sender,
		concurrency: concurrency,
		sendGap:     gap,
	}
}

// Dispatch processes events in order. Only became-available transitions
// reach the send path; out-of-stock transitions update the baseline and
// the event stream but never message anyone.
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.TransitionEvent, products map[string]models.Product,
	subscribersOf func(ctx context.Context, productID string) ([]int64, error)) models.DispatchReport {

	report := models.DispatchReport{EventsProcessed: len(events)}

	var pace *time.Ticker
	if d.sendGap > 0 {
		pace = time.NewTicker(d.sendGap)
		defer pace.Stop()
	}

	var mu sync.Mutex

	for _, ev := range events {
		if !ev.Current {
			continue
		}

		chatIDs, err := subscribersOf(ctx, ev.ProductID)
		if err != nil {
			log.Printf("Failed to resolve subscribers for %s: %v", ev.ProductID, err)
			continue
		}
		if len(chatIDs) == 0 {
			continue
		}

		text := FormatRestockMessage(products[ev.ProductID])

		var g errgroup.Group
		g.SetLimit(d.concurrency)

		for _, chatID := range chatIDs {
			chatID := chatID
			g.Go(func() error {
				if pace != nil {
					select {
					case <-pace.C:
					case <-ctx.Done():
						return nil
					}
				}

				mu.Lock()
				report.SendsAttempted++
				mu.Unlock()

				if err := d.sender.Send(chatID, text); err != nil {
					mu.Lock()
					report.SendsFailed++
					report.Failures = append(report.Failures, models.SendFailure{
						ChatID:    chatID,
						ProductID: ev.ProductID,
						Reason:    err.Error(),
					})
					mu.Unlock()
					return nil
				}

				mu.Lock()
				report.Delivered = append(report.Delivered, models.Delivery{
					ChatID:    chatID,
					ProductID: ev.ProductID,
				})
				mu.Unlock()
				return nil
			})
		}

		g.Wait()
	}

	return report
}
