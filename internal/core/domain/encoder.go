package domain

import "time"

// EncoderEventKind categorizes encoder state-change notifications. Only
// output activation and deactivation matter to the session; everything else
// is EventOther and ignored by the monitor.
type EncoderEventKind string

const (
	EventOutputActivated   EncoderEventKind = "output_activated"
	EventOutputDeactivated EncoderEventKind = "output_deactivated"
	EventOther             EncoderEventKind = "other"
)

// EncoderEvent is a pre-parsed encoder notification. Collaborator payloads
// that cannot be parsed into one of the known kinds never become events.
type EncoderEvent struct {
	Kind EncoderEventKind
	At   time.Time
}
