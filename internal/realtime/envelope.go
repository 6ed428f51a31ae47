package realtime

import "encoding/json"

// Event names carried on the wire. Server → client: NewComplaint,
// StatusUpdate, NewMessage, MessageHistory. Client → server: JoinRoom,
// SendMessage.
const (
	EventNewComplaint   = "newComplaint"
	EventStatusUpdate   = "statusUpdate"
	EventNewMessage     = "newMessage"
	EventMessageHistory = "messageHistory"
	EventJoinRoom       = "joinRoom"
	EventSendMessage    = "sendMessage"
	EventError          = "error"
)

// Envelope is the JSON frame exchanged on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an Envelope for event.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}
