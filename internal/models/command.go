package models

import (
	"fmt"
	"strconv"
	"strings"
)

type ModerationAction string

const (
	ActionAccept ModerationAction = "accept"
	ActionReject ModerationAction = "reject"
)

type ModerationSubject string

const SubjectReport ModerationSubject = "report"

// ModerationCommand is an administrator decision on a moderation subject.
// Its string form ("accept_report_42") is used as inline-button callback data.
type ModerationCommand struct {
	Action  ModerationAction  `json:"action"`
	Subject ModerationSubject `json:"subject"`
	ID      uint              `json:"id"`
}

// Validate rejects unknown actions, unknown subjects and a zero id.
func (c ModerationCommand) Validate() error {
	switch c.Action {
	case ActionAccept, ActionReject:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.Action)
	}
	if c.Subject != SubjectReport {
		return fmt.Errorf("%w: unknown subject %q", ErrInvalidCommand, c.Subject)
	}
	if c.ID == 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidCommand)
	}
	return nil
}

func (c ModerationCommand) String() string {
	return fmt.Sprintf("%s_%s_%d", c.Action, c.Subject, c.ID)
}

// ParseModerationCommand decodes and validates the string form of a command.
func ParseModerationCommand(data string) (ModerationCommand, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 {
		return ModerationCommand{}, fmt.Errorf("%w: %q", ErrInvalidCommand, data)
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return ModerationCommand{}, fmt.Errorf("%w: bad id %q", ErrInvalidCommand, parts[2])
	}
	cmd := ModerationCommand{
		Action:  ModerationAction(parts[0]),
		Subject: ModerationSubject(parts[1]),
		ID:      uint(id),
	}
	if err := cmd.Validate(); err != nil {
		return ModerationCommand{}, err
	}
	return cmd, nil
}
