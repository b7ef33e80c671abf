package models

import "time"

// Pairing is a one-to-one relay session between two participants.
// A pairing with a nil EndedAt is open; a participant has at most one open pairing.
type Pairing struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// User1ID is the participant whose connect completed the match.
	User1ID int64 `gorm:"not null;index" json:"user1_id"`
	// User2ID is the participant taken from the waiting queue.
	User2ID   int64      `gorm:"not null;index" json:"user2_id"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (Pairing) TableName() string { return "pairings" }

// IsOpen reports whether the pairing has not been ended.
func (p *Pairing) IsOpen() bool {
	return p.EndedAt == nil
}

// Involves reports whether id is one of the two sides.
func (p *Pairing) Involves(id int64) bool {
	return p.User1ID == id || p.User2ID == id
}

// PartnerOf returns the other side of the pairing. ok is false when id is not a side.
func (p *Pairing) PartnerOf(id int64) (partner int64, ok bool) {
	switch id {
	case p.User1ID:
		return p.User2ID, true
	case p.User2ID:
		return p.User1ID, true
	}
	return 0, false
}

// Between reports whether the pairing joins a and b, in either order.
func (p *Pairing) Between(a, b int64) bool {
	return (p.User1ID == a && p.User2ID == b) || (p.User1ID == b && p.User2ID == a)
}

// RelayedMessage is an append-only log entry for a message that was delivered
// to the partner of its sender.
type RelayedMessage struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	PairingID uint        `gorm:"not null;index" json:"pairing_id"`
	SenderID  int64       `gorm:"not null" json:"sender_id"`
	Kind      PayloadKind `gorm:"type:text;not null" json:"kind"`
	// Text holds the message text or the media caption.
	Text string `gorm:"type:text" json:"text,omitempty"`
	// FileID is the transport-side reference of the media, empty for text.
	FileID string    `gorm:"type:text" json:"file_id,omitempty"`
	SentAt time.Time `gorm:"not null" json:"sent_at"`
}

func (RelayedMessage) TableName() string { return "relayed_messages" }

// Payload returns the payload this entry recorded.
func (m *RelayedMessage) Payload() Payload {
	return Payload{Kind: m.Kind, Text: m.Text, FileID: m.FileID}
}
