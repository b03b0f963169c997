package notification

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"google.golang.org/api/option"
)

// FCMPusher delivers notification intents over Firebase Cloud Messaging.
// A nil pusher is valid and drops everything, so the server starts without
// Firebase credentials.
type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(credentialsFile string) (*FCMPusher, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		// Log warning instead of error to not block server startup
		log.Printf("⚠️ Failed to initialize Firebase app: %v (push notifications disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &FCMPusher{client: client}, nil
}

// Push sends the intent to every device token in one multicast
func (p *FCMPusher) Push(ctx context.Context, tokens []string, intent model.NotificationIntent) error {
	if p == nil || p.client == nil || len(tokens) == 0 {
		return nil
	}

	body := intent.Body
	if body == "" {
		body = "Sent an attachment"
	}

	data := map[string]string{
		"type":            intent.Type,
		"conversation_id": intent.ConversationID.String(),
		"from_user_id":    intent.FromUserID.String(),
	}
	for k, v := range intent.Metadata {
		data[k] = v
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: intent.Title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := p.client.SendMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}
	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			}
		}
	}
	return nil
}
