package push

import (
	"context"
	"net/http"

	"messaging-service/internal/domain"
	"messaging-service/pkg/httpclient"
)

// Outcome classifies a delivery attempt. Only Gone mutates state upstream
// (the dead subscription is cleared); Failed is logged and dropped.
type Outcome int

const (
	Delivered Outcome = iota
	// Gone means the provider reported the subscription no longer exists
	// (HTTP 404/410 class responses).
	Gone
	Failed
)

// Payload is the out-of-band push body handed to the provider.
type Payload struct {
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title,omitempty"`
	Body      string                  `json:"body,omitempty"`
	ChannelID string                  `json:"channelId,omitempty"`
	ItemID    string                  `json:"itemId,omitempty"`
	Extra     map[string]any          `json:"extra,omitempty"`
}

// Provider delivers one push message to one device subscription. The wire
// protocol behind it is external; implementations only triage outcomes.
type Provider interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload Payload) (Outcome, error)
}

// GatewayClient sends pushes through the platform's push gateway service.
type GatewayClient struct {
	http *httpclient.Client
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{http: httpclient.New(baseURL)}
}

func (c *GatewayClient) Send(ctx context.Context, sub *domain.PushSubscription, payload Payload) (Outcome, error) {
	req := struct {
		Endpoint string  `json:"endpoint"`
		Keys     string  `json:"keys"`
		Payload  Payload `json:"payload"`
	}{Endpoint: sub.Endpoint, Keys: sub.Keys, Payload: payload}

	status, err := c.http.PostJSONStatus(ctx, "/internal/v1/push/send", req, nil)
	if err != nil {
		if status == http.StatusNotFound || status == http.StatusGone {
			return Gone, nil
		}
		return Failed, err
	}
	return Delivered, nil
}
