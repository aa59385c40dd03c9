package monitor

import (
	"github.com/pkg/errors"

	"github.com/fgrosse/voicebot"
)

// ReferenceKeyPrefix is the Storage key prefix of linked Steam ids.
const ReferenceKeyPrefix = "steam.ref."

// References resolves the external reference of a chat user. Statically
// configured references take precedence over the ones users linked themselves,
// which are kept in the bot Storage.
type References struct {
	static map[string]string
	store  *voicebot.Storage
}

// NewReferences creates a new References instance. Both arguments are optional.
func NewReferences(static map[string]string, store *voicebot.Storage) *References {
	return &References{static: static, store: store}
}

// Lookup returns the reference of the given user or the empty string if the
// user has none.
func (r *References) Lookup(userID string) (string, error) {
	if ref := r.static[userID]; ref != "" {
		return ref, nil
	}

	if r.store == nil {
		return "", nil
	}

	var ref string
	_, err := r.store.Get(ReferenceKeyPrefix+userID, &ref)
	if err != nil {
		return "", errors.Wrap(err, "failed to lookup reference")
	}

	return ref, nil
}

// Link stores the reference of a user.
func (r *References) Link(userID, ref string) error {
	if r.store == nil {
		return voicebot.ErrNotImplemented
	}

	return errors.Wrap(r.store.Set(ReferenceKeyPrefix+userID, ref), "failed to store reference")
}

// Unlink removes the stored reference of a user. Statically configured
// references cannot be removed.
func (r *References) Unlink(userID string) (bool, error) {
	if r.store == nil {
		return false, nil
	}

	ok, err := r.store.Delete(ReferenceKeyPrefix + userID)
	return ok, errors.Wrap(err, "failed to delete reference")
}
