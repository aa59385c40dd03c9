package voicebot

import "context"

// A Sender gives modules access to the Adapter the bot is finally running
// with, e.g. to send messages from a background goroutine that is not tied to
// a ReceiveMessageEvent.
type Sender struct {
	conf *Config
}

// Sender returns a Sender that always uses the Adapter the bot is configured
// with at the time of the call.
func (c *Config) Sender() *Sender {
	return &Sender{conf: c}
}

// Send sends a text message to the given channel.
func (s *Sender) Send(text, channel string) error {
	return s.conf.adapter.Send(text, channel)
}

// SendContext is like Send but gives up when the context is done before the
// message was sent. Adapters that are not a ContextAwareAdapter only check the
// context before sending.
func (s *Sender) SendContext(ctx context.Context, text, channel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a, ok := s.conf.adapter.(ContextAwareAdapter); ok {
		return a.SendContext(ctx, text, channel)
	}

	return s.conf.adapter.Send(text, channel)
}

// SendMediaContext is like SendMedia but gives up when the context is done
// before the media was sent.
func (s *Sender) SendMediaContext(ctx context.Context, ref, channel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a, ok := s.conf.adapter.(ContextAwareAdapter); ok {
		return a.SendMediaContext(ctx, ref, channel)
	}

	return s.SendMedia(ref, channel)
}

// SendMedia sends a media reference to the given channel. If the Adapter does
// not support media ErrNotImplemented is returned.
func (s *Sender) SendMedia(ref, channel string) error {
	a, ok := s.conf.adapter.(MediaAwareAdapter)
	if !ok {
		return ErrNotImplemented
	}

	return a.SendMedia(ref, channel)
}

// VoiceChannel returns the voice channel the given user currently is in. If
// the Adapter does not track voice channels ErrNotImplemented is returned.
func (s *Sender) VoiceChannel(ctx context.Context, userID string) (string, error) {
	a, ok := s.conf.adapter.(PresenceAwareAdapter)
	if !ok {
		return "", ErrNotImplemented
	}

	return a.VoiceChannel(ctx, userID)
}
