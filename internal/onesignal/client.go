package onesignal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blackmichael/esaver-notifier/internal/domain"
	"github.com/blackmichael/esaver-notifier/internal/httpclient"
)

const notificationsPath = "/api/v1/notifications"

// InvalidResponse is the rejection detail reported when the service answers
// with something other than JSON.
const InvalidResponse = "Invalid response from OneSignal"

// Client dispatches push notifications through the OneSignal REST API. It
// implements domain.Notifier.
type Client struct {
	http   *httpclient.Client
	apiKey string
}

// NewClient creates a OneSignal client authenticating with the REST API key.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:   httpclient.New(apiURL, timeout),
		apiKey: apiKey,
	}
}

// Send posts payload once. The notification is accepted only when the service
// answers 200 with an id; anything else is returned as a failed outcome
// carrying the service's response.
func (c *Client) Send(ctx context.Context, payload domain.Payload) (domain.DispatchOutcome, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   notificationsPath,
		Header: http.Header{"Authorization": {"Basic " + c.apiKey}},
		Body:   payload,
	})
	if err != nil {
		var malformed *httpclient.MalformedResponseError
		if errors.As(err, &malformed) {
			return domain.DispatchOutcome{Error: InvalidResponse}, nil
		}
		return domain.DispatchOutcome{}, fmt.Errorf("send notification: %w", err)
	}

	var body createNotificationResponse
	if err := json.Unmarshal(resp.Body, &body); err == nil && resp.StatusCode == http.StatusOK && body.ID != "" {
		return domain.DispatchOutcome{Success: true, ID: body.ID}, nil
	}

	var detail any
	if err := json.Unmarshal(resp.Body, &detail); err != nil {
		detail = InvalidResponse
	}
	return domain.DispatchOutcome{Error: detail}, nil
}

type createNotificationResponse struct {
	ID         string          `json:"id"`
	Recipients int             `json:"recipients"`
	Errors     json.RawMessage `json:"errors,omitempty"`
}
