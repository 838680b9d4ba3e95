package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
)

// Notifier delivers web-push messages to every registered browser
// subscription using VAPID keys. Delivery is best effort: a failed endpoint
// is logged, a gone endpoint (404/410) is pruned, and there are no retries.
type Notifier struct {
	subs       ports.SubscriptionStore
	subscriber string
	publicKey  string
	privateKey string
	logger     *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the VAPID key pair and subscription store.
func NewNotifier(subs ports.SubscriptionStore, subscriber, publicKey, privateKey string, logger *slog.Logger) *Notifier {
	return &Notifier{
		subs:       subs,
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		logger:     logger,
	}
}

// Enabled reports whether VAPID keys are configured.
func (n *Notifier) Enabled() bool {
	return n.publicKey != "" && n.privateKey != ""
}

// Broadcast sends the payload to every stored subscription.
func (n *Notifier) Broadcast(ctx context.Context, msg domain.PushMessage) error {
	if !n.Enabled() {
		return fmt.Errorf("push notifier misconfigured: missing vapid keys")
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	subs, err := n.subs.Subscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := n.send(ctx, sub, payload); err != nil && n.logger != nil {
			n.logger.Warn("push delivery failed", "endpoint", sub.Endpoint, "error", err)
		}
	}

	return nil
}

func (n *Notifier) send(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      n.subscriber,
		VAPIDPublicKey:  n.publicKey,
		VAPIDPrivateKey: n.privateKey,
		TTL:             3600,
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		// Subscription expired or was revoked; drop it.
		if delErr := n.subs.DeleteSubscription(ctx, sub.Endpoint); delErr != nil {
			return fmt.Errorf("prune gone subscription: %w", delErr)
		}
		return nil
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push service returned %s", resp.Status)
	}

	return nil
}

// EncodeMessage marshals the payload read by the service worker. The tag
// defaults to daily-digest so consecutive digests replace each other instead
// of stacking.
func EncodeMessage(msg domain.PushMessage) ([]byte, error) {
	if msg.Tag == "" {
		msg.Tag = "daily-digest"
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal push payload: %w", err)
	}
	return payload, nil
}
