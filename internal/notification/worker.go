package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"parking-status-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans freed-space events out to push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification: worker %d started", id)
	for {
		select {
		case spaceID := <-wp.jobs:
			wp.notifyFreedSpace(ctx, spaceID)
		case <-ctx.Done():
			log.Printf("notification: worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a freed space for notification delivery.
func (wp *WorkerPool) Dispatch(spaceID int64) {
	wp.jobs <- spaceID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// notifyFreedSpace fetches the space's watchers and pushes to each of them.
func (wp *WorkerPool) notifyFreedSpace(ctx context.Context, spaceID int64) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_space_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.space_id = ?", spaceID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("notification: fetching subscriptions for space %d: %v", spaceID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	spaceLabel := fmt.Sprintf("%d", spaceID)
	var space model.Space
	if err := wp.db.WithContext(ctx).
		Select("label").
		First(&space, spaceID).Error; err != nil {
		log.Printf("notification: fetching space %d: %v", spaceID, err)
	} else if space.Label != "" {
		spaceLabel = space.Label
	}

	log.Printf("notification: sending %d notifications for space %s", len(subscriptions), spaceLabel)
	message := fmt.Sprintf("Parking space %s is now free!", spaceLabel)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(message))
	}
}

// send pushes one notification and prunes the subscription if it expired.
func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("notification: sending to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("notification: subscription %s expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("notification: deleting expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
