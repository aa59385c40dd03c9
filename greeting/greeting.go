// Package greeting greets people that join the watched voice channel or come
// online and says goodbye when they leave.
package greeting

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fgrosse/voicebot"
)

// Config contains the texts of the greeting module. Each list contains
// candidates of which one is picked at random. The placeholder {name} is
// replaced with the name of the user. Empty lists disable the corresponding
// greeting.
type Config struct {
	Channel      string // text channel that receives the greetings
	VoiceChannel string // only greet in this voice channel, all channels if empty

	Join   []string
	Leave  []string
	Online []string

	// Cooldown is the minimum time between two greetings. Greetings within
	// the cooldown are dropped. Zero disables the cooldown.
	Cooldown time.Duration
}

type greeter struct {
	conf   Config
	logger *zap.Logger
	sender *voicebot.Sender
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Module returns a voicebot.Module that registers the greeting handlers.
func Module(conf Config) voicebot.Module {
	return voicebot.ModuleFunc(func(botConf *voicebot.Config) error {
		g := &greeter{
			conf:   conf,
			logger: botConf.Logger("greeting"),
			sender: botConf.Sender(),
			now:    time.Now,
		}

		botConf.RegisterHandler(g.voiceJoin)
		botConf.RegisterHandler(g.voiceLeave)
		botConf.RegisterHandler(g.presenceUpdate)
		return nil
	})
}

func (g *greeter) watched(channelID string) bool {
	return g.conf.VoiceChannel == "" || channelID == g.conf.VoiceChannel
}

func (g *greeter) voiceJoin(evt voicebot.VoiceJoinEvent) error {
	if !g.watched(evt.ChannelID) {
		return nil
	}

	return g.greet(g.conf.Join, evt.UserName)
}

func (g *greeter) voiceLeave(evt voicebot.VoiceLeaveEvent) error {
	if !g.watched(evt.ChannelID) {
		return nil
	}

	return g.greet(g.conf.Leave, evt.UserName)
}

func (g *greeter) presenceUpdate(evt voicebot.PresenceUpdateEvent) error {
	if evt.Status != "online" || evt.PreviousStatus == "online" {
		return nil
	}

	return g.greet(g.conf.Online, evt.UserName)
}

func (g *greeter) greet(candidates []string, name string) error {
	if len(candidates) == 0 {
		return nil
	}

	if !g.allow() {
		g.logger.Debug("Skipping greeting during cooldown", zap.String("name", name))
		return nil
	}

	text := candidates[rand.Intn(len(candidates))]
	text = strings.ReplaceAll(text, "{name}", name)
	return g.sender.Send(text, g.conf.Channel)
}

// allow reports whether a greeting may be sent now and starts a new cooldown
// if so.
func (g *greeter) allow() bool {
	if g.conf.Cooldown <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) < g.conf.Cooldown {
		return false
	}

	g.last = now
	return true
}
