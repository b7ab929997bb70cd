package llm

// DoneSentinel is the data payload of the frame terminating every relayed stream.
const DoneSentinel = "[DONE]"

// Frame is the JSON payload of each data frame the relay sends to clients.
type Frame struct {
	// Text is an incremental text delta, or the whole widget buffer on the widget frame.
	Text string `json:"text"`

	// Widget marks the single frame that carries the buffered widget payload.
	Widget bool `json:"widget,omitempty"`
}
