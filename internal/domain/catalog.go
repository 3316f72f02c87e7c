package domain

import (
	"errors"
	"strings"
)

// ErrUnknownNotificationType is returned when a type selector is not in the
// catalog the caller is restricted to.
var ErrUnknownNotificationType = errors.New("unknown notification type")

// ScheduledMessage is a canned notification selectable by type.
type ScheduledMessage struct {
	Type    string
	Heading string
	Message string
	Segment string
}

// Catalog is an ordered set of scheduled messages.
type Catalog []ScheduledMessage

// Lookup returns the message registered for typ.
func (c Catalog) Lookup(typ string) (ScheduledMessage, bool) {
	for _, m := range c {
		if m.Type == typ {
			return m, true
		}
	}
	return ScheduledMessage{}, false
}

// Types returns the catalog's type selectors in order.
func (c Catalog) Types() []string {
	types := make([]string, len(c))
	for i, m := range c {
		types[i] = m.Type
	}
	return types
}

// UnknownTypeError reports an unrecognized selector along with the types
// that would have been accepted.
type UnknownTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownTypeError) Error() string {
	return "Invalid notification type. Available types: " + strings.Join(e.Available, ", ")
}

func (e *UnknownTypeError) Unwrap() error {
	return ErrUnknownNotificationType
}

func (c Catalog) resolve(typ string) (ScheduledMessage, error) {
	m, ok := c.Lookup(typ)
	if !ok {
		return ScheduledMessage{}, &UnknownTypeError{Type: typ, Available: c.Types()}
	}
	return m, nil
}

var (
	morningMessage = ScheduledMessage{
		Type:    "morning",
		Heading: "🌅 Good Morning!",
		Message: "Start your day by checking your energy usage. Small changes add up!",
		Segment: DefaultSegment,
	}
	weeklyMessage = ScheduledMessage{
		Type:    "weekly",
		Heading: "📊 Weekly Energy Report",
		Message: "Check your weekly energy usage and see how much you've saved!",
		Segment: DefaultSegment,
	}
)

// ScheduledCatalog is the set accepted by the scheduled-notifications handler.
var ScheduledCatalog = Catalog{
	morningMessage,
	{
		Type:    "afternoon",
		Heading: "☀️ Afternoon Check-in",
		Message: "How's your energy usage today? Remember to unplug unused devices!",
		Segment: DefaultSegment,
	},
	{
		Type:    "evening",
		Heading: "🌙 Evening Reminder",
		Message: "Before bed, make sure all appliances are turned off to save energy.",
		Segment: DefaultSegment,
	},
	weeklyMessage,
	{
		Type:    "energy_tips",
		Heading: "💡 Energy Saving Tip",
		Message: "Did you know? Unplugging your charger when not in use can save up to ₱50/month!",
		Segment: "energy_tips",
	},
}

// CombinedCatalog is the set accepted by the combined handler. The feed check
// entry carries no message of its own; it only triggers feed monitoring.
var CombinedCatalog = Catalog{
	morningMessage,
	weeklyMessage,
	{
		Type:    "facebook_check",
		Heading: "🔍 Checking for Rate Updates",
		Message: "Monitoring SAMELCO Facebook page for electricity rate changes...",
		Segment: DefaultSegment,
	},
}

// combinedPlan says which branches a combined type runs.
func combinedPlan(typ string) (sendScheduled, monitorFeed bool) {
	switch typ {
	case "morning":
		return true, true
	case "weekly":
		return true, false
	case "facebook_check":
		return false, true
	}
	return false, false
}
