// Package monitor polls the game status of every user in a watched voice
// channel and announces when somebody starts playing something.
//
// A Supervisor owns one Task per monitored Subject. Tasks are started when a
// subject joins the watched channel and stopped when it leaves. Every Task
// checks on each cycle if its subject is still present, fetches the current
// activity through a (rate limited) StatusClient and sends a notification
// when the activity changed.
package monitor

import (
	"context"

	"github.com/fgrosse/voicebot/steam"
)

// A Subject is a user that can be monitored.
type Subject struct {
	ID   string // the chat user ID
	Name string // display name used in notifications
	Ref  string // external reference (Steam ID), empty if the subject cannot be monitored
}

func (s Subject) displayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// A StatusClient fetches the current activity of a subject by its external
// reference. It is implemented by *steam.Client.
type StatusClient interface {
	FetchStatus(ctx context.Context, ref string) (steam.Snapshot, error)
}

// Presence tells whether a subject is still eligible for monitoring (i.e. it
// is still in the watched voice channel). An error means the subject can no
// longer be resolved and stops its Task just like returning false.
type Presence interface {
	IsPresent(ctx context.Context, subjectID string) (bool, error)
}

// PresenceFunc is a function implementation of the Presence interface.
type PresenceFunc func(ctx context.Context, subjectID string) (bool, error)

// IsPresent implements the Presence interface.
func (f PresenceFunc) IsPresent(ctx context.Context, subjectID string) (bool, error) {
	return f(ctx, subjectID)
}

// A Notifier delivers notifications to a chat channel.
type Notifier interface {
	SendText(ctx context.Context, channel, text string) error
	SendMedia(ctx context.Context, channel, ref string) error
}
