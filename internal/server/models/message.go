package models

import "time"

// Message content types. OUTGOING messages trigger routing; INCOMING
// messages are routing products (or direct deliveries) and never route
// further.
const (
	ContentTypeOutgoing = "OUTGOING"
	ContentTypeIncoming = "INCOMING"
)

// Message is an immutable payload stored on a buffer. AttachmentKey is the
// object-storage key for payloads offloaded to S3, empty otherwise.
type Message struct {
	UID           string
	BufferUID     string
	Content       string
	ContentType   string
	AttachmentKey string
	CreatedAt     time.Time
}
