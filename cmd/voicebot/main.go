// Command voicebot runs the chat bot that watches a voice channel and
// announces what the people in there are playing.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
