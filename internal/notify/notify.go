// Package notify defines the outbound notification contracts: channels,
// message payloads, gateway interfaces, and the aggregate delivery report.
// Delivery failures never escape this package as operation errors; they are
// collected into the Report and surfaced to the caller as data.
package notify

import (
	"context"
	"time"
)

// Channel identifies a delivery transport.
type Channel string

const (
	// ChannelPush delivers via the mobile push gateway.
	ChannelPush Channel = "push"
	// ChannelSMS delivers via the SMS gateway.
	ChannelSMS Channel = "sms"
)

// Kind distinguishes offer messages from status updates.
type Kind string

const (
	// KindOffer proposes a job to a translator.
	KindOffer Kind = "offer"
	// KindStatus informs a translator about a lifecycle change on their job.
	KindStatus Kind = "status"
)

// Message is the canonical payload sent to a single translator.
type Message struct {
	Kind            Kind
	JobID           string
	FromLanguage    string
	ToLanguage      string
	Immediate       bool
	DueAt           time.Time
	DurationMinutes int
	// Body carries free text for status messages (e.g. cancellation notice).
	Body string
}

// Gateway describes a transport capable of delivering a message to one recipient.
type Gateway interface {
	Send(ctx context.Context, translatorID string, msg Message) error
}

// GatewayFunc adapts a function to the Gateway interface (useful for tests).
type GatewayFunc func(ctx context.Context, translatorID string, msg Message) error

// Send implements the Gateway interface.
func (f GatewayFunc) Send(ctx context.Context, translatorID string, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, translatorID, msg)
}

// DeliveryError records a single failed delivery.
type DeliveryError struct {
	TranslatorID string  `json:"translator_id"`
	Channel      Channel `json:"channel"`
	Err          string  `json:"error"`
}

// Report aggregates the outcome of one dispatch fan-out. A whole-channel
// outage shows up as failures for every recipient on that channel, never as
// an error from the dispatch call itself.
type Report struct {
	Sent    map[Channel]int `json:"sent"`
	Failed  map[Channel]int `json:"failed"`
	Errors  []DeliveryError `json:"errors,omitempty"`
	Started time.Time       `json:"started"`
}

// NewReport creates an empty report.
func NewReport(now time.Time) *Report {
	return &Report{
		Sent:    make(map[Channel]int),
		Failed:  make(map[Channel]int),
		Started: now,
	}
}

// RecordSuccess counts a successful delivery on a channel.
func (r *Report) RecordSuccess(ch Channel) {
	r.Sent[ch]++
}

// RecordFailure counts a failed delivery and keeps its detail.
func (r *Report) RecordFailure(translatorID string, ch Channel, err error) {
	r.Failed[ch]++
	detail := "delivery failed"
	if err != nil {
		detail = err.Error()
	}
	r.Errors = append(r.Errors, DeliveryError{
		TranslatorID: translatorID,
		Channel:      ch,
		Err:          detail,
	})
}

// Delivered returns the total number of successful deliveries across channels.
func (r *Report) Delivered() int {
	n := 0
	for _, v := range r.Sent {
		n += v
	}
	return n
}

// FailureCount returns the total number of failed deliveries across channels.
func (r *Report) FailureCount() int {
	n := 0
	for _, v := range r.Failed {
		n += v
	}
	return n
}
