package voicebot

// The InitEvent is the first event that is handled by the Brain after the Bot
// is started via Bot.Run().
type InitEvent struct{}

// The ShutdownEvent is the last event that is handled by the Brain before it
// stops handling any events after the bot context is done.
type ShutdownEvent struct{}

// The ReceiveMessageEvent is typically emitted by an Adapter when the Bot sees
// a new message from the chat.
type ReceiveMessageEvent struct {
	ID       string // The ID of the message, identifying it at least uniquely within the Channel
	Text     string // The message text.
	AuthorID string // A string identifying the author of the message on the adapter.
	Channel  string // The channel over which the message was received.

	// A message may optionally also contain additional information that was
	// received by the Adapter (e.g. with the discord adapter this is the
	// *discordgo.MessageCreate event).
	Data interface{}
}

// The VoiceJoinEvent is emitted by the Adapter when a user enters a voice
// channel. Moving from one voice channel to another emits a VoiceLeaveEvent
// for the old channel followed by a VoiceJoinEvent for the new one.
type VoiceJoinEvent struct {
	UserID    string
	UserName  string
	ChannelID string
	GuildID   string
}

// The VoiceLeaveEvent is emitted by the Adapter when a user leaves a voice
// channel.
type VoiceLeaveEvent struct {
	UserID    string
	UserName  string
	ChannelID string
	GuildID   string
}

// The PresenceUpdateEvent is emitted by the Adapter when the online status or
// the activity of a user changes. Not all adapters support presence updates.
type PresenceUpdateEvent struct {
	UserID         string
	UserName       string
	Status         string // e.g. "online", "idle", "dnd" or "offline"
	PreviousStatus string // empty if the adapter has not seen the user before
	Activity       string // name of the current activity, if any
}
