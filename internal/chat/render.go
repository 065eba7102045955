package chat

import (
	"encoding/json"

	"github.com/acqboard/internal/inbox"
)

// renderSnapshot serializes the inbox snapshot for the prompt. JSON is
// deliberate: the model is asked to rank and cite leads, and a stable
// machine shape beats prose for that.
func renderSnapshot(snap *inbox.Snapshot) string {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
