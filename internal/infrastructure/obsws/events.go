package obsws

import (
	"encoding/json"
	"time"

	"streamcast/internal/core/domain"
)

// Output state strings reported by StreamStateChanged.
const (
	outputStateStarted = "OBS_WEBSOCKET_OUTPUT_STARTED"
	outputStateStopped = "OBS_WEBSOCKET_OUTPUT_STOPPED"
)

// parseEvent converts an encoder event payload into a domain event. A payload
// that cannot be parsed is logged and dropped; activity detection must never
// report active on guesswork, and the poll path covers any gap.
func (c *Client) parseEvent(raw json.RawMessage) (domain.EncoderEvent, bool) {
	var msg eventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warnw("unparseable encoder event, ignoring", "error", err)
		return domain.EncoderEvent{}, false
	}

	if msg.EventType != "StreamStateChanged" {
		return domain.EncoderEvent{Kind: domain.EventOther, At: time.Now()}, true
	}

	var data struct {
		OutputActive bool   `json:"outputActive"`
		OutputState  string `json:"outputState"`
	}
	if err := json.Unmarshal(msg.EventData, &data); err != nil {
		c.logger.Warnw("unparseable stream state payload, ignoring", "error", err)
		return domain.EncoderEvent{}, false
	}

	ev := domain.EncoderEvent{At: time.Now()}
	switch {
	case data.OutputActive || data.OutputState == outputStateStarted:
		ev.Kind = domain.EventOutputActivated
	case data.OutputState == outputStateStopped:
		ev.Kind = domain.EventOutputDeactivated
	default:
		// Transitional states (starting, stopping, reconnecting) carry no
		// activity signal on their own.
		ev.Kind = domain.EventOther
	}

	c.logger.Debugw("encoder stream state changed",
		"active", data.OutputActive, "state", data.OutputState)
	return ev, true
}
