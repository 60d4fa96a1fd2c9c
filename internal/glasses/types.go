package glasses

// Event payloads delivered by a connected pair of glasses, and the voice
// parameters forwarded untouched to the device speech engine.

const (
	PressLong  = "long"
	PressShort = "short"
)

type ButtonPress struct {
	ButtonID  string `json:"button_id"`
	PressType string `json:"press_type"`
}

type Transcription struct {
	Text     string `json:"text"`
	IsFinal  bool   `json:"is_final"`
	Language string `json:"language,omitempty"`
}

type Battery struct {
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VoiceOpts are pass-through speech-synthesis parameters. No validation is
// performed here; the device side interprets them.
type VoiceOpts struct {
	Stability  float64 `json:"stability,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	Style      float64 `json:"style,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
}

// Wire frames. Inbound frames are dispatched on their type tag; outbound
// frames are written as-is.

type inboundEnvelope struct {
	Type string `json:"type"`
}

type inboundButtonPress struct {
	ButtonID  string `json:"button_id"`
	PressType string `json:"press_type"`
}

type inboundTranscription struct {
	Text     string `json:"text"`
	IsFinal  bool   `json:"is_final"`
	Language string `json:"language"`
}

type inboundBattery struct {
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

type inboundLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type inboundPhotoResponse struct {
	RequestID string `json:"request_id"`
	Data      string `json:"data"`
	MIMEType  string `json:"mime_type"`
	Filename  string `json:"filename"`
	Error     string `json:"error"`
}

type outboundSpeak struct {
	Type  string     `json:"type"`
	Text  string     `json:"text"`
	Voice *VoiceOpts `json:"voice,omitempty"`
}

type outboundDisplayText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outboundPhotoRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}
