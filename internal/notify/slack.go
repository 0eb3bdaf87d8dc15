// Package notify tells dispatchers about trips that need a human decision.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// Approval describes a webhook-created trip waiting for dispatcher approval.
type Approval struct {
	Trip        domain.Trip
	RiderName   string
	Integration string
}

// Notifier delivers approval requests.
type Notifier interface {
	TripNeedsApproval(ctx context.Context, a Approval) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) TripNeedsApproval(context.Context, Approval) error { return nil }

// poster is the subset of *slack.Client the notifier uses.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts approval requests to one channel.
type Slack struct {
	api     poster
	channel string
	loc     *time.Location
}

// NewSlack returns a Slack notifier authenticated with token. Pickup times
// are rendered in loc.
func NewSlack(token, channel string, loc *time.Location) *Slack {
	return NewSlackWithClient(slack.New(token), channel, loc)
}

// NewSlackWithClient is NewSlack over an existing client.
func NewSlackWithClient(api poster, channel string, loc *time.Location) *Slack {
	if loc == nil {
		loc = time.UTC
	}
	return &Slack{api: api, channel: channel, loc: loc}
}

func (s *Slack) TripNeedsApproval(ctx context.Context, a Approval) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(ApprovalText(a, s.loc), false))
	if err != nil {
		return fmt.Errorf("notify.Slack.TripNeedsApproval: %w", err)
	}
	return nil
}

// ApprovalText renders the message body for a.
func ApprovalText(a Approval, loc *time.Location) string {
	return fmt.Sprintf("*Trip awaiting approval* from %s\nRider: %s\nPickup: %s at %s\nDropoff: %s\nTrip: %s",
		a.Integration,
		a.RiderName,
		a.Trip.ScheduledPickupTime.In(loc).Format("Mon 2 Jan 2006 15:04 MST"),
		a.Trip.PickupAddress,
		a.Trip.DropoffAddress,
		a.Trip.ID)
}
