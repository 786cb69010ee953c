package session

import (
	"encoding/json"
	"fmt"
)

// EventType names one of the inbound server event variants.
type EventType string

const (
	// EventTranscription carries a partial input transcript string.
	EventTranscription EventType = "transcription"
	// EventContent carries model output: text parts and/or inline audio.
	EventContent EventType = "content"
	// EventTurnComplete is a turn boundary marker with no payload.
	EventTurnComplete EventType = "turncomplete"
	// EventToolCall carries a structured function-call payload.
	EventToolCall EventType = "toolcall"
)

// Chunk is one outbound media fragment.
type Chunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// ToolCall is one requested function invocation.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ServerEvent is one decoded inbound event. Which fields are set depends
// on Type: transcription and content set Text, content may also set
// Audio, toolcall sets Calls.
type ServerEvent struct {
	Type  EventType
	Text  string
	Audio []Chunk
	Calls []ToolCall
}

// Wire shapes for inbound frames. One frame may decode into several
// events, e.g. a model turn carrying text parts plus the turn-complete
// marker.
type serverFrame struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCallFrame `json:"toolCall,omitempty"`
}

type serverContent struct {
	InputTranscription *transcriptionPayload `json:"inputTranscription,omitempty"`
	ModelTurn          *modelTurn            `json:"modelTurn,omitempty"`
	TurnComplete       bool                  `json:"turnComplete,omitempty"`
}

type transcriptionPayload struct {
	Text string `json:"text"`
}

type modelTurn struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *Chunk `json:"inlineData,omitempty"`
}

type toolCallFrame struct {
	FunctionCalls []ToolCall `json:"functionCalls"`
}

// parseServerFrame decodes one inbound frame into its tagged events, in
// payload order. Frames that decode but carry nothing of interest yield
// an empty slice, not an error.
func parseServerFrame(data []byte) ([]ServerEvent, error) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("failed to decode server frame: %w", err)
	}

	var events []ServerEvent

	if content := frame.ServerContent; content != nil {
		if content.InputTranscription != nil && content.InputTranscription.Text != "" {
			events = append(events, ServerEvent{
				Type: EventTranscription,
				Text: content.InputTranscription.Text,
			})
		}

		if content.ModelTurn != nil {
			ev := ServerEvent{Type: EventContent}
			for _, part := range content.ModelTurn.Parts {
				if part.Text != "" {
					ev.Text += part.Text
				}
				if part.InlineData != nil {
					ev.Audio = append(ev.Audio, *part.InlineData)
				}
			}
			if ev.Text != "" || len(ev.Audio) > 0 {
				events = append(events, ev)
			}
		}

		if content.TurnComplete {
			events = append(events, ServerEvent{Type: EventTurnComplete})
		}
	}

	if frame.ToolCall != nil && len(frame.ToolCall.FunctionCalls) > 0 {
		events = append(events, ServerEvent{
			Type:  EventToolCall,
			Calls: frame.ToolCall.FunctionCalls,
		})
	}

	return events, nil
}

// Wire shapes for outbound frames.
type setupFrame struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model string `json:"model"`
}

type realtimeInputFrame struct {
	RealtimeInput realtimeInputPayload `json:"realtimeInput"`
}

type realtimeInputPayload struct {
	MediaChunks []Chunk `json:"mediaChunks"`
}

type toolResponseFrame struct {
	ToolResponse toolResponsePayload `json:"toolResponse"`
}

type toolResponsePayload struct {
	FunctionResponses []ToolResponse `json:"functionResponses"`
}

// ToolResponse answers one function call.
type ToolResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}
