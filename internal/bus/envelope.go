package bus

import (
	"encoding/json"
	"fmt"
)

// KindError is the envelope kind used for error replies. Its body is a
// RemoteError.
const KindError = "error"

// Envelope is the wire frame for every bus message: correlation metadata,
// a kind discriminator so the receiver can recover the concrete type, and
// the JSON-encoded body.
type Envelope struct {
	CorrelationID string          `json:"correlation_id"`
	ReplyTopic    string          `json:"reply_topic,omitempty"`
	Kind          string          `json:"kind"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// RemoteError is the body of a KindError envelope.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope builds an envelope around a JSON-encodable body.
func NewEnvelope(correlationID, replyTopic, kind string, body any) (*Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return &Envelope{
		CorrelationID: correlationID,
		ReplyTopic:    replyTopic,
		Kind:          kind,
		Body:          raw,
	}, nil
}

// Encode serializes the envelope for the transport.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a transport payload back into an envelope.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// DecodeBody unmarshals the envelope body into v.
func (e *Envelope) DecodeBody(v any) error {
	return json.Unmarshal(e.Body, v)
}
