// Package wire encodes and decodes the JSON frames relays exchange with
// clients. Frames are heterogeneous JSON arrays whose first element names
// the frame type.
//
// Client to relay: ["REQ", subID, filter], ["CLOSE", subID],
// ["EVENT", record]. Relay to client: ["EVENT", subID, record],
// ["EOSE", subID], ["OK", recordID, accepted, reason], ["NOTICE", text].
package wire

import (
	"encoding/json"
	"fmt"

	"dirnet/pkg/types"
)

// Message is an inbound frame from a relay.
type Message interface {
	message()
}

// RecordMessage carries one record for an open subscription.
type RecordMessage struct {
	Subscription types.SubscriptionID
	Record       types.Record
}

// EndOfQuery is the relay's terminal signal for a subscription: all
// stored records matching the filter have been sent.
type EndOfQuery struct {
	Subscription types.SubscriptionID
}

// Ack is the relay's response to a published record.
type Ack struct {
	RecordID types.RecordID
	Accepted bool
	Reason   string
}

// Notice is a free-form diagnostic from the relay.
type Notice struct {
	Text string
}

func (RecordMessage) message() {}
func (EndOfQuery) message()    {}
func (Ack) message()           {}
func (Notice) message()        {}

// EncodeReq frames a subscription request.
func EncodeReq(sub types.SubscriptionID, filter types.Filter) ([]byte, error) {
	return json.Marshal([]interface{}{"REQ", sub, filter})
}

// EncodeClose frames a subscription stop.
func EncodeClose(sub types.SubscriptionID) ([]byte, error) {
	return json.Marshal([]interface{}{"CLOSE", sub})
}

// EncodePublish frames a record for publishing.
func EncodePublish(r *types.Record) ([]byte, error) {
	return json.Marshal([]interface{}{"EVENT", r})
}

// Decode parses one inbound frame. Unknown or malformed frames return an
// error; the caller drops them and keeps reading.
func Decode(data []byte) (Message, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	var label string
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return nil, fmt.Errorf("malformed frame label: %w", err)
	}

	switch label {
	case "EVENT":
		if len(parts) < 3 {
			return nil, fmt.Errorf("EVENT frame with %d elements", len(parts))
		}
		var msg RecordMessage
		if err := json.Unmarshal(parts[1], &msg.Subscription); err != nil {
			return nil, fmt.Errorf("EVENT subscription id: %w", err)
		}
		if err := json.Unmarshal(parts[2], &msg.Record); err != nil {
			return nil, fmt.Errorf("EVENT record: %w", err)
		}
		return msg, nil

	case "EOSE":
		if len(parts) < 2 {
			return nil, fmt.Errorf("EOSE frame with %d elements", len(parts))
		}
		var msg EndOfQuery
		if err := json.Unmarshal(parts[1], &msg.Subscription); err != nil {
			return nil, fmt.Errorf("EOSE subscription id: %w", err)
		}
		return msg, nil

	case "OK":
		if len(parts) < 3 {
			return nil, fmt.Errorf("OK frame with %d elements", len(parts))
		}
		var msg Ack
		if err := json.Unmarshal(parts[1], &msg.RecordID); err != nil {
			return nil, fmt.Errorf("OK record id: %w", err)
		}
		if err := json.Unmarshal(parts[2], &msg.Accepted); err != nil {
			return nil, fmt.Errorf("OK accepted flag: %w", err)
		}
		if len(parts) >= 4 {
			if err := json.Unmarshal(parts[3], &msg.Reason); err != nil {
				return nil, fmt.Errorf("OK reason: %w", err)
			}
		}
		return msg, nil

	case "NOTICE":
		if len(parts) < 2 {
			return nil, fmt.Errorf("NOTICE frame with %d elements", len(parts))
		}
		var msg Notice
		if err := json.Unmarshal(parts[1], &msg.Text); err != nil {
			return nil, fmt.Errorf("NOTICE text: %w", err)
		}
		return msg, nil

	default:
		return nil, fmt.Errorf("unknown frame type %q", label)
	}
}
