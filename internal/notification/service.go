package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	authrepo "lexhub-backend/internal/auth/repository"
	conndomain "lexhub-backend/internal/connection/domain"
	connrepo "lexhub-backend/internal/connection/repository"
	connusecase "lexhub-backend/internal/connection/usecase"
	"lexhub-backend/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes to the Pub/Sub topic when
// a watched mailbox changes.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service turns Gmail push notifications into sync runs and pushes FCM
// notifications when a run finishes.
type Service struct {
	pubsubClient    *pubsub.Client
	connRepo        connrepo.ConnectionRepository
	deviceTokenRepo authrepo.DeviceTokenRepository
	fcmClient       *fcm.Client
	reconciler      *connusecase.Reconciler
	topicName       string
	subName         string

	// Dedup: Gmail redelivers, only act on a historyId newer than the last
	// one seen per connection.
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName string, connRepo connrepo.ConnectionRepository, deviceTokenRepo authrepo.DeviceTokenRepository, fcmClient *fcm.Client, reconciler *connusecase.Reconciler, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient:    client,
		connRepo:        connRepo,
		deviceTokenRepo: deviceTokenRepo,
		fcmClient:       fcmClient,
		reconciler:      reconciler,
		topicName:       topicName,
		subName:         topicName + "-sub", // Convention: topic-sub
		lastHistoryID:   make(map[string]uint64),
	}, nil
}

// Start subscribes and blocks until ctx is cancelled. Run it in a goroutine.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	log.Printf("[PubSub] Received notification for: %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	conn, err := s.connRepo.FindByProviderAccount(conndomain.ProviderGmail, notification.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error finding connection for %s: %v", notification.EmailAddress, err)
		return
	}
	if conn == nil {
		log.Printf("[PubSub] No connection for mailbox: %s", notification.EmailAddress)
		return
	}
	if conn.Frequency != conndomain.FrequencyRealtime {
		return
	}

	s.mu.Lock()
	lastHID, seen := s.lastHistoryID[conn.ID]
	if seen && notification.HistoryID <= lastHID {
		s.mu.Unlock()
		log.Printf("[PubSub] Skipping duplicate notification for connection %s (historyId %d <= last %d)", conn.ID, notification.HistoryID, lastHID)
		return
	}
	s.lastHistoryID[conn.ID] = notification.HistoryID
	s.mu.Unlock()

	if err := s.reconciler.SyncAsync(conn.ID); err != nil {
		if errors.Is(err, conndomain.ErrSyncInProgress) {
			log.Printf("[PubSub] Connection %s already syncing, notification dropped", conn.ID)
			return
		}
		log.Printf("[PubSub] Failed to start sync for connection %s: %v", conn.ID, err)
	}
}

// SyncFinished pushes an FCM notification to the connection owner's devices.
// Wire it as the reconciler's finished hook.
func (s *Service) SyncFinished(conn *conndomain.Connection, synced, failed int) {
	if s.fcmClient == nil {
		return
	}

	tokens, err := s.deviceTokenRepo.ListByUser(conn.UserID)
	if err != nil {
		log.Printf("[FCM] Error getting device tokens for user %s: %v", conn.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	title := "Sync complete"
	body := fmt.Sprintf("%s: %d items synced", conn.AccountEmail, synced)
	if failed > 0 {
		body = fmt.Sprintf("%s: %d items synced, %d failed", conn.AccountEmail, synced, failed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failedTokens, err := s.fcmClient.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":          "sync_finished",
			"connection_id": conn.ID,
			"synced":        fmt.Sprintf("%d", synced),
			"failed":        fmt.Sprintf("%d", failed),
		},
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}

	for _, token := range failedTokens {
		if err := s.deviceTokenRepo.Unregister(token); err != nil {
			log.Printf("[FCM] Failed to remove stale token: %v", err)
		}
	}
}
