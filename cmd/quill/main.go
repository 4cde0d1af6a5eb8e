// Command quill is a character-authoring co-writer: brainstorm a character
// out loud in a live voice session or over text chat, while the model edits
// the character document through tool calls.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
