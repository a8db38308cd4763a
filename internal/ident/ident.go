// Package ident issues short random identifiers for rooms and participants.
package ident

import (
	"crypto/rand"
	"math/big"
)

// URL-safe so room ids can go straight into a shareable path.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

const (
	RoomIDLength        = 8
	ParticipantIDLength = 6
)

// New returns a random token of the requested length. Collisions are
// possible in principle but negligible at the population sizes a single
// process serves; ids are routing keys, never credentials.
func New(length int) string {
	id := make([]byte, length)
	for i := range id {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		id[i] = alphabet[n.Int64()]
	}
	return string(id)
}

// NewRoomID returns an id sized for shareable room URLs.
func NewRoomID() string { return New(RoomIDLength) }

// NewParticipantID returns an id sized for transient participants.
func NewParticipantID() string { return New(ParticipantIDLength) }
