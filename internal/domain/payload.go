package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultSegment is the audience used when a caller names none.
	DefaultSegment = "general"

	// KindRateUpdate tags notifications produced by feed monitoring.
	KindRateUpdate = "rate_update"

	rateUpdateHeading     = "⚡ SAMELCO Rate Update"
	rateUpdateGenericBody = "SAMELCO has posted about electricity rates. Tap to view details."
)

// Payload is the wire body of a push-notification dispatch.
type Payload struct {
	AppID            string            `json:"app_id"`
	Headings         LocalizedText     `json:"headings"`
	Contents         LocalizedText     `json:"contents"`
	IncludedSegments []string          `json:"included_segments"`
	Data             *NotificationData `json:"data,omitempty"`
	URL              string            `json:"url,omitempty"`
}

// LocalizedText carries per-language strings. Only English is sent.
type LocalizedText struct {
	EN string `json:"en"`
}

// NotificationData is the structured block handed to the mobile app.
type NotificationData struct {
	Type          string      `json:"type"`
	Timestamp     string      `json:"timestamp"`
	PostURL       string      `json:"postUrl,omitempty"`
	UpdateID      string      `json:"updateId,omitempty"`
	ExtractedRate json.Number `json:"extractedRate,omitempty"`
}

// PayloadBuilder maps notification intents onto Payloads. It does no I/O;
// the clock is the only input besides the arguments.
type PayloadBuilder struct {
	appID      string
	profileURL string
	now        func() time.Time
}

// NewPayloadBuilder creates a builder for the given notification app.
// profileURL is the feed profile used to link posts without a permalink.
func NewPayloadBuilder(appID, profileURL string, now func() time.Time) *PayloadBuilder {
	if now == nil {
		now = time.Now
	}
	return &PayloadBuilder{
		appID:      appID,
		profileURL: strings.TrimRight(profileURL, "/"),
		now:        now,
	}
}

// BuildScheduled builds a canned or free-form notification. An empty segment
// targets DefaultSegment.
func (b *PayloadBuilder) BuildScheduled(kind, heading, message, segment string) Payload {
	if segment == "" {
		segment = DefaultSegment
	}
	return Payload{
		AppID:            b.appID,
		Headings:         LocalizedText{EN: heading},
		Contents:         LocalizedText{EN: message},
		IncludedSegments: []string{segment},
		Data: &NotificationData{
			Type:      kind,
			Timestamp: b.timestamp(),
		},
	}
}

// BuildRateUpdate builds the notification for a detected rate post. When
// postURL is empty the link falls back to the profile post URL for postID.
func (b *PayloadBuilder) BuildRateUpdate(rate decimal.NullDecimal, postURL, postID string) Payload {
	if postURL == "" {
		postURL = b.FallbackPostURL(postID)
	}

	body := rateUpdateGenericBody
	var extracted json.Number
	if rate.Valid {
		body = fmt.Sprintf("New electricity rate detected: ₱%s/kWh. Tap to view details.", rate.Decimal.StringFixed(2))
		extracted = json.Number(rate.Decimal.String())
	}

	return Payload{
		AppID:            b.appID,
		Headings:         LocalizedText{EN: rateUpdateHeading},
		Contents:         LocalizedText{EN: body},
		IncludedSegments: []string{DefaultSegment},
		Data: &NotificationData{
			Type:          KindRateUpdate,
			Timestamp:     b.timestamp(),
			PostURL:       postURL,
			UpdateID:      postID,
			ExtractedRate: extracted,
		},
		URL: postURL,
	}
}

// FallbackPostURL is the profile link used for posts without a permalink.
func (b *PayloadBuilder) FallbackPostURL(postID string) string {
	return b.profileURL + "/posts/" + postID
}

func (b *PayloadBuilder) timestamp() string {
	return b.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
