// Package hub fans overlay messages out to every connected websocket client.
// Messages are pre-encoded text frames; those published under a key are
// retained and replayed to clients that join later.
package hub

import "encoding/json"

// Message is one encoded text frame.
type Message []byte

// Encode marshals v as a JSON text frame.
func Encode(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Message(data), nil
}
