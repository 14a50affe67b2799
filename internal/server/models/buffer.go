package models

import "time"

// Buffer is a logical message queue owned by a client. DeviceUID is empty
// for buffers not attached to a particular device.
type Buffer struct {
	UID       string
	ClientUID string
	DeviceUID string
	Name      string
	CreatedAt time.Time
}
