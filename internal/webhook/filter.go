package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// DefaultLeadTime is the minimum notice an appointment must give before a
// trip is created for it.
const DefaultLeadTime = 2 * time.Hour

// Filters are the per-integration acceptance rules for appointments.
// Empty keyword or attendee lists disable that check.
type Filters struct {
	Keywords  []string
	Attendees []string
	LeadTime  time.Duration
}

// FiltersFor builds the Filters configured on an integration.
func FiltersFor(in domain.WebhookIntegration, leadTime time.Duration) Filters {
	return Filters{Keywords: in.KeywordFilters, Attendees: in.AttendeeFilters, LeadTime: leadTime}
}

// Decision is the result of Decide. Reason is set whenever Create is false.
type Decision struct {
	Create bool
	Reason string
}

// Decide evaluates the keyword, attendee and lead-time checks in that order.
// The first failing check wins. The lead-time check is inclusive: an
// appointment exactly LeadTime away is accepted.
func Decide(appt domain.Appointment, f Filters, now time.Time) Decision {
	if len(f.Keywords) > 0 {
		text := strings.ToLower(appt.Title + " " + appt.Description)
		if !containsAny(text, f.Keywords) {
			return Decision{Reason: "no configured keyword in title or description"}
		}
	}

	if len(f.Attendees) > 0 && !attendeeMatches(appt.Attendees, f.Attendees) {
		return Decision{Reason: "no attendee matches the attendee filter"}
	}

	if appt.Start.Sub(now) < f.LeadTime {
		return Decision{Reason: fmt.Sprintf("appointment starts in less than %s", f.LeadTime)}
	}

	return Decision{Create: true}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func attendeeMatches(attendees []domain.Attendee, allowed []string) bool {
	for _, a := range attendees {
		name := normalizeName(a.Name)
		for _, want := range allowed {
			if name != "" && name == normalizeName(want) {
				return true
			}
		}
	}
	return false
}

// normalizeName lower-cases and collapses internal whitespace.
func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// PrimaryAttendee is the name used to resolve the rider. Only the first
// attendee counts; a blank first name is reported as absent even when later
// attendees are named.
func PrimaryAttendee(appt domain.Appointment) (string, bool) {
	if len(appt.Attendees) == 0 {
		return "", false
	}
	n := strings.Join(strings.Fields(appt.Attendees[0].Name), " ")
	return n, n != ""
}
