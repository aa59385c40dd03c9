package voicebot

import (
	"context"
	"fmt"
)

func ExampleBrain_RegisterHandler() {
	done := make(chan bool) // just to cleanly shutdown when we processed the event

	b := NewBrain(nil)
	b.RegisterHandler(func(event VoiceJoinEvent) {
		fmt.Printf("%s joined %s\n", event.UserName, event.ChannelID)
		done <- true
	})

	go b.HandleEvents()
	b.Emit(VoiceJoinEvent{UserID: "42", UserName: "Alice", ChannelID: "general"})

	<-done
	b.Shutdown(context.Background())

	// Output: Alice joined general
}
