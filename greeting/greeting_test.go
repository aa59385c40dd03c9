package greeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fgrosse/voicebot"
	"github.com/fgrosse/voicebot/voicebottest"
)

func TestModule(t *testing.T) {
	bot := voicebottest.NewBot(t, Module(Config{
		VoiceChannel: "lobby",
		Join:         []string{"Welcome {name}!"},
		Leave:        []string{"Bye {name}"},
		Online:       []string{"Good to see you {name}"},
	}))

	bot.Start()
	assert.Equal(t, "test > ", bot.ReadOutput())

	bot.Join("alice", "lobby")
	bot.Join("bob", "afk")
	bot.Leave("alice")
	bot.Leave("bob")
	bot.EmitSync(voicebot.PresenceUpdateEvent{UserID: "carol", UserName: "Carol", Status: "online", PreviousStatus: "offline"})
	bot.EmitSync(voicebot.PresenceUpdateEvent{UserID: "carol", UserName: "Carol", Status: "online", PreviousStatus: "online"})
	bot.EmitSync(voicebot.PresenceUpdateEvent{UserID: "carol", UserName: "Carol", Status: "idle", PreviousStatus: "online"})
	bot.Stop()

	expected := "Welcome alice!\nBye alice\nGood to see you Carol\n\n"
	assert.Equal(t, expected, bot.ReadOutput())
}

func TestGreeter_Cooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	g := &greeter{
		conf: Config{Cooldown: time.Minute},
		now:  func() time.Time { return now },
	}

	assert.True(t, g.allow())
	assert.False(t, g.allow())

	now = now.Add(59 * time.Second)
	assert.False(t, g.allow())

	now = now.Add(time.Second)
	assert.True(t, g.allow())
}

func TestGreeter_NoCooldown(t *testing.T) {
	g := &greeter{now: time.Now}
	assert.True(t, g.allow())
	assert.True(t, g.allow())
}
