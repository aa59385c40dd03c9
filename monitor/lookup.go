package monitor

import (
	"math/rand"
	"strings"
)

// DefaultMessage is used for activities that have no entry in Lookup.Messages.
// The placeholders {name} and {activity} are replaced with the subject name
// and the activity label.
const DefaultMessage = "{name} is now playing {activity}"

// Lookup maps activity labels to the text and media that are sent when a
// subject starts the activity. Labels are matched case insensitively.
type Lookup struct {
	Messages       map[string]string
	Media          map[string][]string // candidates, one is chosen at random
	DefaultMessage string
}

// A Notification is what a Task announces when a subject starts an activity.
type Notification struct {
	Text  string
	Media string // optional
}

// Notification selects the text and media for the given subject and label.
func (l Lookup) Notification(subject Subject, label string) Notification {
	text, ok := l.message(label)
	if !ok {
		text = l.DefaultMessage
		if text == "" {
			text = DefaultMessage
		}
	}

	r := strings.NewReplacer("{name}", subject.displayName(), "{activity}", label)
	n := Notification{Text: r.Replace(text)}

	if candidates := l.media(label); len(candidates) > 0 {
		n.Media = candidates[rand.Intn(len(candidates))]
	}

	return n
}

func (l Lookup) message(label string) (string, bool) {
	keys := make([]string, 0, len(l.Messages))
	for k := range l.Messages {
		keys = append(keys, k)
	}

	k, ok := key(keys, label)
	return l.Messages[k], ok
}

func (l Lookup) media(label string) []string {
	keys := make([]string, 0, len(l.Media))
	for k := range l.Media {
		keys = append(keys, k)
	}

	k, ok := key(keys, label)
	if !ok {
		return nil
	}

	return l.Media[k]
}

// key returns the key of m that matches the label. Keys loaded from config
// files are often lower cased so the match is case insensitive.
func key(keys []string, label string) (string, bool) {
	for _, k := range keys {
		if k == label {
			return k, true
		}
	}

	for _, k := range keys {
		if strings.EqualFold(k, label) {
			return k, true
		}
	}

	return "", false
}
