// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is one accepted subscription submission.
type Subscriber struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// NewSubscriber assigns a fresh UUIDv4 and stamps now in UTC.
func NewSubscriber(email, name string, now time.Time) *Subscriber {
	return &Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		SubscribedAt: now.UTC(),
	}
}
