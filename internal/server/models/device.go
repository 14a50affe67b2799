package models

import "time"

// Device is a client-owned endpoint that produces and consumes messages.
type Device struct {
	UID       string
	ClientUID string
	Name      string
	CreatedAt time.Time
}
