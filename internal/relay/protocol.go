package relay

import (
	"encoding/json"
	"errors"
)

// Event names on the realtime surface.
const (
	EventJoin               = "join"
	EventMessage            = "message"
	EventPermissionsUpdate  = "permissionsUpdate"
	EventTechnicianJoined   = "technicianJoined"
	EventClientJoined       = "clientJoined"
	EventPermissionsUpdated = "permissionsUpdated"
	EventUserDisconnected   = "userDisconnected"
	EventError              = "error"
)

// envelope is the wire form of every frame in both directions:
// {"event": "...", "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func parseEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, err
	}
	if env.Event == "" {
		return envelope{}, errors.New("missing event name")
	}
	return env, nil
}

func buildEnvelope(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
