package tts

import (
	"strings"
	"time"
)

// Socket.IO event names spoken by the synthesis service.
const (
	EventTextTransmit = "text_transmit"
	EventResult       = "result"
)

const (
	DefaultModel        = "vits"
	DefaultSpeaker      = 0
	DefaultInterval     = 200 * time.Millisecond
	DefaultTimeout      = 600 * time.Second
	DefaultPollInterval = time.Second
)

// Job is one item to synthesize.
type Job struct {
	Sheet  string
	ItemID string
	Text   string
}

// Request is the outbound synthesis payload.
type Request struct {
	Text    string `json:"text"`
	Model   string `json:"model"`
	Gender  string `json:"gender"`
	Index   int    `json:"index"`
	Speaker int    `json:"speaker"`
}

// Result is the inbound synthesis payload. Audio is base64 and may be null.
type Result struct {
	Audio *string `json:"audio"`
	Index *int    `json:"index"`
}

// Gender derives the voice gender tag from a sheet name.
func Gender(sheet string) string {
	if strings.Contains(strings.ToLower(sheet), "female") {
		return "female"
	}
	return "male"
}
