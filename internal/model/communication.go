package model

import (
	"time"

	"github.com/google/uuid"
)

type CommunicationChannel string

const (
	ChannelSMS      CommunicationChannel = "sms"
	ChannelEmail    CommunicationChannel = "email"
	ChannelPhone    CommunicationChannel = "phone"
	ChannelPortal   CommunicationChannel = "portal"
	ChannelInPerson CommunicationChannel = "in_person"
	ChannelMail     CommunicationChannel = "mail"
)

func (c CommunicationChannel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelPhone, ChannelPortal, ChannelInPerson, ChannelMail:
		return true
	}
	return false
}

type CommunicationDirection string

const (
	DirectionInbound  CommunicationDirection = "inbound"
	DirectionOutbound CommunicationDirection = "outbound"
)

func (d CommunicationDirection) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

type CommunicationStatus string

const (
	CommunicationStatusSent      CommunicationStatus = "sent"
	CommunicationStatusDelivered CommunicationStatus = "delivered"
)

// CommunicationEvent is append-only. Once written it is never updated
// or deleted; the contact's total_communications counter must always
// equal the number of its events.
type CommunicationEvent struct {
	ID        uuid.UUID              `db:"id" json:"id"`
	ContactID uuid.UUID              `db:"contact_id" json:"contact_id"`
	Channel   CommunicationChannel   `db:"channel" json:"channel"`
	Direction CommunicationDirection `db:"direction" json:"direction"`
	Status    CommunicationStatus    `db:"status" json:"status"`
	Subject   *string                `db:"subject" json:"subject,omitempty"`
	Content   string                 `db:"content" json:"content"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

type LogCommunicationRequest struct {
	Channel   string  `json:"channel" binding:"required"`
	Direction string  `json:"direction" binding:"required"`
	Content   string  `json:"content" binding:"required"`
	Subject   *string `json:"subject"`
}
