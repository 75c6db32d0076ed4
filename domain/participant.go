// Package domain contains core concepts of the chat system.
// This file defines the User identity as seen by the realtime core.
// The account subsystem owns it; the core only reads it.
package domain

import "time"

// User is the profile projection of an account: credential material is never part of it.
type User struct {
	ID         string
	Name       string
	Email      string
	ProfilePic string
	CreatedAt  time.Time
}
