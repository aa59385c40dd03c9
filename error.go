package voicebot

// Error is the error type used by the bot. This allows errors to be defined as
// constants following https://dave.cheney.net/2016/04/07/constant-errors.
type Error string

// Error implements the "error" interface of the standard library.
func (err Error) Error() string {
	return string(err)
}

// ErrNotImplemented is returned if the user tries to use a feature that is not
// implemented on the corresponding components (e.g. the Adapter). For instance,
// not all Adapter implementations may support sending media and trying to
// attach an image to a channel might return this error.
const ErrNotImplemented = Error("not implemented")

// ErrUnknownUser is returned by a PresenceAwareAdapter if a user can no longer
// be resolved (e.g. because they left the server).
const ErrUnknownUser = Error("unknown user")
