package domain

import "fmt"

// NotificationAction is one interactive button attached to a notification.
type NotificationAction struct {
	Label string
	Value string
}

// Well-known action values the interactive surface reacts to.
const (
	ActionViewStats         = "view_stats"
	ActionStartNewChallenge = "start_new_challenge"
)

// NotificationPayload is the transport-agnostic description of one outgoing
// notification. Both the interactive dialog flows and the scheduled fire
// paths build this value instead of fabricating a fake interaction context.
type NotificationPayload struct {
	UserID   string
	ChatID   string
	Text     string
	ImageURL string
	Caption  string
	Actions  []NotificationAction
}

// DailyReminderPayload builds the cheerful daily nudge with a short status
// summary of the challenge so far.
func DailyReminderPayload(user User, challenge Challenge) NotificationPayload {
	remaining := challenge.DurationDays - challenge.SuccessfulDays
	if remaining < 0 {
		remaining = 0
	}

	text := fmt.Sprintf(
		"Time to work out! 💪\n%d of %d days done, %d to go. Keep the streak alive.",
		challenge.SuccessfulDays, challenge.DurationDays, remaining,
	)

	return NotificationPayload{
		UserID: user.ID,
		ChatID: user.ChatID,
		Text:   text,
		Actions: []NotificationAction{
			{Label: "View stats", Value: ActionViewStats},
		},
	}
}

// MissedDayPayload builds the escalation notice for missCount consecutive
// missed days, or the terminal failure notice when terminal is set. The
// caption severity grows with the miss count; the terminal variant swaps the
// stats button for a restart prompt.
func MissedDayPayload(user User, missCount int, terminal bool) NotificationPayload {
	payload := NotificationPayload{
		UserID: user.ID,
		ChatID: user.ChatID,
	}

	switch {
	case terminal:
		payload.Caption = fmt.Sprintf(
			"Challenge failed after %d missed days in a row. 😔 Ready for another try?",
			MissThreshold,
		)
		payload.Actions = []NotificationAction{
			{Label: "Start new challenge", Value: ActionStartNewChallenge},
		}
	case missCount <= 1:
		payload.Caption = "You skipped yesterday's workout. One rest day is fine, two is a habit."
		payload.Actions = []NotificationAction{
			{Label: "View stats", Value: ActionViewStats},
		}
	default:
		payload.Caption = fmt.Sprintf(
			"%d missed days in a row. One more and the challenge fails!",
			missCount,
		)
		payload.Actions = []NotificationAction{
			{Label: "View stats", Value: ActionViewStats},
		}
	}

	return payload
}
