package models

import "fmt"

// PayloadKind is the kind of content a participant sends through the relay.
type PayloadKind string

const (
	KindText      PayloadKind = "text"
	KindPhoto     PayloadKind = "photo"
	KindVideo     PayloadKind = "video"
	KindAnimation PayloadKind = "animation"
	KindSticker   PayloadKind = "sticker"
)

// supportedKinds is the relay allow-list. Anything else is dropped at the transport boundary.
var supportedKinds = map[PayloadKind]bool{
	KindText:      true,
	KindPhoto:     true,
	KindVideo:     true,
	KindAnimation: true,
	KindSticker:   true,
}

// Supported reports whether k is on the relay allow-list.
func (k PayloadKind) Supported() bool {
	return supportedKinds[k]
}

// IsMedia reports whether the kind references a transport-side file.
func (k PayloadKind) IsMedia() bool {
	return k != KindText && k.Supported()
}

// Payload is a message body passed verbatim from sender to partner.
type Payload struct {
	Kind PayloadKind `json:"kind"`
	// Text is the message text, or the caption for media kinds.
	Text string `json:"text,omitempty"`
	// FileID is the transport-side file reference for media kinds.
	FileID string `json:"file_id,omitempty"`
}

// TextPayload builds a text payload.
func TextPayload(text string) Payload {
	return Payload{Kind: KindText, Text: text}
}

// Validate checks the kind against the allow-list and that the body is present.
func (p Payload) Validate() error {
	if !p.Kind.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedPayload, p.Kind)
	}
	if p.Kind == KindText && p.Text == "" {
		return fmt.Errorf("%w: empty text", ErrUnsupportedPayload)
	}
	if p.Kind.IsMedia() && p.FileID == "" {
		return fmt.Errorf("%w: %s without file id", ErrUnsupportedPayload, p.Kind)
	}
	return nil
}
