package models

import "time"

// BanRecord is a durable exclusion marker. There is at most one per participant;
// a newer ban overwrites the older one.
type BanRecord struct {
	ParticipantID int64  `gorm:"primaryKey;autoIncrement:false" json:"participant_id"`
	Reason        string `gorm:"type:text;not null" json:"reason"`
	// BannedBy is the issuing administrator, nil when the system issued the ban.
	BannedBy *int64    `json:"banned_by,omitempty"`
	BannedAt time.Time `gorm:"not null" json:"banned_at"`
}

func (BanRecord) TableName() string { return "ban_records" }

// IssuedBySystem reports whether no administrator is recorded as the issuer.
func (b *BanRecord) IssuedBySystem() bool {
	return b.BannedBy == nil
}
