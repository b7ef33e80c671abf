package models

import "time"

// Participant is an anonymous user of the service.
// Participants are created on first contact and never deleted; exclusion is
// expressed through a BanRecord.
type Participant struct {
	// ID is the opaque numeric identity. Telegram users keep their Telegram user ID,
	// WebSocket users get an ID from the negative range.
	ID int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	// Username is the optional display handle.
	Username string `gorm:"type:text" json:"username,omitempty"`
	// JoinedAt is the time of first contact.
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (Participant) TableName() string { return "participants" }

// Handle returns a printable handle for admin-facing messages.
func (p *Participant) Handle() string {
	if p == nil || p.Username == "" {
		return "N/A"
	}
	return "@" + p.Username
}

// Administrator is a participant granted elevated capability.
// The bot owner is an administrator implicitly and is never stored here.
type Administrator struct {
	ParticipantID int64     `gorm:"primaryKey;autoIncrement:false" json:"participant_id"`
	Username      string    `gorm:"type:text" json:"username"`
	AddedBy       int64     `gorm:"not null" json:"added_by"`
	AddedAt       time.Time `gorm:"not null" json:"added_at"`
}

func (Administrator) TableName() string { return "administrators" }
