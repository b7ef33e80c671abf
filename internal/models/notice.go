package models

// Notice is a system notification addressed to one participant. Key selects a
// localized template; Args fill its verbs.
type Notice struct {
	Recipient int64
	Key       string
	Args      []any
}

// NewNotice is a shorthand for building a Notice.
func NewNotice(recipient int64, key string, args ...any) Notice {
	return Notice{Recipient: recipient, Key: key, Args: args}
}

// Notice keys shared by the engine and the localization files.
const (
	NoticeSearching           = "searching"
	NoticePartnerFound        = "partner_found"
	NoticeDisconnected        = "disconnected"
	NoticePartnerDisconnected = "partner_disconnected"
	NoticeStoppedSearching    = "stopped_searching"
	NoticeNotInChat           = "not_in_chat"
	NoticeReconnecting        = "reconnecting"
	NoticeRelayFailed         = "relay_failed"
	NoticeReportSubmitted     = "report_submitted"
	NoticeReportAccepted      = "report_accepted"
	NoticeReportAcceptedEnded = "report_accepted_ended"
	NoticeReportRejected      = "report_rejected"
	NoticeBannedByReport      = "banned_by_report"
	NoticeBannedByAdmin       = "banned_by_admin"
	NoticePartnerBanned       = "partner_banned"
	NoticeUnbanned            = "unbanned"
)
