// Package models holds the server-side domain records persisted by the
// repositories. Records are plain structs; behavior lives in the services.
package models

import "time"

// Client is an account that owns devices, buffers, and connection schemes.
type Client struct {
	UID          string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
