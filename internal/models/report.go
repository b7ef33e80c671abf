package models

import "time"

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportAccepted ReportStatus = "accepted"
	ReportRejected ReportStatus = "rejected"
)

// Report is a flag raised by a participant against their current partner.
// It leaves the pending state exactly once.
type Report struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ReporterID int64  `gorm:"not null;index" json:"reporter_id"`
	ReportedID int64  `gorm:"not null;index" json:"reported_id"`
	PairingID  uint   `gorm:"not null" json:"pairing_id"`
	Reason     string `gorm:"type:text;not null" json:"reason"`

	// Snapshot of the flagged payload.
	SnapshotKind   PayloadKind `gorm:"type:text" json:"snapshot_kind,omitempty"`
	SnapshotText   string      `gorm:"type:text" json:"snapshot_text,omitempty"`
	SnapshotFileID string      `gorm:"type:text" json:"snapshot_file_id,omitempty"`

	Status     ReportStatus `gorm:"type:text;not null;default:pending" json:"status"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	ResolvedBy *int64       `json:"resolved_by,omitempty"`
}

func (Report) TableName() string { return "reports" }

// IsPending reports whether no administrator has decided on the report yet.
func (r *Report) IsPending() bool {
	return r.Status == ReportPending
}

// Snapshot returns the flagged payload.
func (r *Report) Snapshot() Payload {
	return Payload{Kind: r.SnapshotKind, Text: r.SnapshotText, FileID: r.SnapshotFileID}
}

// SetSnapshot copies p into the snapshot columns.
func (r *Report) SetSnapshot(p Payload) {
	r.SnapshotKind = p.Kind
	r.SnapshotText = p.Text
	r.SnapshotFileID = p.FileID
}
