// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrUnknownRole        = errors.New("unknown role")
)

type ParticipantID string

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleHost, RoleGuest:
		return Role(s), nil
	case "":
		return RoleGuest, nil
	}
	return "", ErrUnknownRole
}

func (r Role) IsHost() bool { return r == RoleHost }

// Participant is a member of a live session as seen by this client.
type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"displayName"`
	Role        Role          `json:"role"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ParticipantID, displayName string, role Role) (*Participant, error) {
	if len(displayName) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	if id == "" {
		id = ParticipantID(uuid.NewString())
	}
	return &Participant{ID: id, DisplayName: displayName, Role: role}, nil
}

// ParticipantMediaState mirrors what a participant currently publishes.
type ParticipantMediaState struct {
	ParticipantID ParticipantID `json:"participantId"`
	MediaStatus
}
