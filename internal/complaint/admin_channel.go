package complaint

import (
	"context"
	"errors"

	"strangerchat/backend/internal/models"
)

// AdminChannel is a privileged sink that puts new reports in front of
// administrators for review.
type AdminChannel interface {
	// PublishReport announces a pending report. reporter may be nil when the
	// reporter has no participant record.
	PublishReport(ctx context.Context, report *models.Report, reporter *models.Participant) error
}

// DecisionHandler receives an administrator decision coming back from a channel.
type DecisionHandler func(ctx context.Context, adminID int64, cmd models.ModerationCommand) error

// FanOut publishes to every channel and joins their errors.
type FanOut []AdminChannel

func (f FanOut) PublishReport(ctx context.Context, report *models.Report, reporter *models.Participant) error {
	var errs []error
	for _, ch := range f {
		if err := ch.PublishReport(ctx, report, reporter); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
