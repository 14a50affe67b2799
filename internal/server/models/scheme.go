package models

import "time"

// ConnectionScheme is a client-owned routing topology between buffers.
// Transitions maps a source buffer UID to the ordered list of destination
// buffer UIDs reachable from it within this scheme. Every UID appearing in
// Transitions (keys and destinations) must be a member of UsedBuffers.
type ConnectionScheme struct {
	UID         string
	ClientUID   string
	Name        string
	UsedBuffers []string
	Transitions map[string][]string
	CreatedAt   time.Time
}

// UsesBuffer reports whether bufferUID is part of this scheme.
func (s *ConnectionScheme) UsesBuffer(bufferUID string) bool {
	for _, uid := range s.UsedBuffers {
		if uid == bufferUID {
			return true
		}
	}
	return false
}
