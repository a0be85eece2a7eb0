package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingType    = errors.New("message type missing")
	ErrInvalidMessage = errors.New("invalid message")
)

type rawHeader struct {
	Type      json.RawMessage `json:"type"`
	ID        json.RawMessage `json:"id"`
	UserID    json.RawMessage `json:"userId"`
	RoomID    json.RawMessage `json:"roomId"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Probe decodes only the header. The type must be a non-empty string; every
// other header field is taken when it has the expected JSON kind and left
// zero otherwise, so forward-compatible messages are never rejected here.
func Probe(data []byte) (Header, error) {
	var raw rawHeader
	if err := json.Unmarshal(data, &raw); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	var h Header
	if len(raw.Type) == 0 || json.Unmarshal(raw.Type, &h.Type) != nil || h.Type == "" {
		return Header{}, ErrMissingType
	}
	_ = json.Unmarshal(raw.ID, &h.ID)
	_ = json.Unmarshal(raw.UserID, &h.UserID)
	_ = json.Unmarshal(raw.RoomID, &h.RoomID)
	_ = json.Unmarshal(raw.Timestamp, &h.Timestamp)
	return h, nil
}

// Decode parses one frame into its concrete variant. Unrecognized types come
// back as *Unknown holding a copy of data.
func Decode(data []byte) (Message, error) {
	h, err := Probe(data)
	if err != nil {
		return nil, err
	}

	var msg Message
	switch h.Type {
	case TypeJoin:
		msg = &Join{}
	case TypeJoined:
		msg = &Joined{}
	case TypePresence:
		msg = &Presence{}
	case TypeFlipStart:
		msg = &FlipStart{}
	case TypeFlipResult:
		msg = &FlipResult{}
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return &Unknown{Header: h, Raw: raw}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, h.Type, err)
	}
	if err := validate(msg, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, h.Type, err)
	}
	return msg, nil
}

func validate(msg Message, data []byte) error {
	switch m := msg.(type) {
	case *Join:
		if m.UserID == "" {
			return errors.New("userId required")
		}
		if m.RoomID == "" {
			return errors.New("roomId required")
		}
	case *Joined:
		if m.RoomID == "" {
			return errors.New("roomId required")
		}
	case *Presence:
		if m.RoomID == "" {
			return errors.New("roomId required")
		}
	case *FlipStart:
		var seed struct {
			Seed *int64 `json:"seed"`
		}
		if err := json.Unmarshal(data, &seed); err != nil || seed.Seed == nil {
			return errors.New("integer seed required")
		}
	case *FlipResult:
		if m.Payload.Result == "" {
			return errors.New("payload.result required")
		}
	}
	return nil
}

// StampRaw overwrites the header fields of a raw message with h, keeping
// every other field as it was. Empty header values remove the key.
func StampRaw(raw []byte, h Header) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	put := func(key string, v any, present bool) {
		if !present {
			delete(fields, key)
			return
		}
		b, _ := json.Marshal(v)
		fields[key] = b
	}
	put("id", h.ID, h.ID != "")
	put("userId", h.UserID, h.UserID != "")
	put("roomId", h.RoomID, h.RoomID != "")
	put("timestamp", h.Timestamp, h.Timestamp != 0)
	return json.Marshal(fields)
}

// Encode is the inverse of Decode. The type tag always follows the variant.
func Encode(msg Message) ([]byte, error) {
	if u, ok := msg.(*Unknown); ok {
		if len(u.Raw) > 0 {
			return u.Raw, nil
		}
		if u.Type == "" {
			return nil, ErrMissingType
		}
		return json.Marshal(u.Header)
	}
	msg.Head().Type = msg.MessageType()
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	return b, nil
}
