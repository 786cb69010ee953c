package transcription

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

// Request carries one transcription dispatch: container-encoded audio as
// base64, its MIME type, and an optional previous-transcript context hint.
type Request struct {
	Audio       string
	MIMEType    string
	ContextHint string
}

// Capability is the remote transcription contract. Implementations return
// the raw response body; unwrapping happens in the pipeline.
type Capability interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// GeminiCapability transcribes audio through the Gemini API with the
// radiology system instruction applied on every request.
type GeminiCapability struct {
	client *genai.Client
	model  string
}

// NewGeminiCapability creates a Gemini-backed transcription capability.
func NewGeminiCapability(ctx context.Context, apiKey, model string) (*GeminiCapability, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiCapability{
		client: client,
		model:  model,
	}, nil
}

// Transcribe sends the audio plus prompt to the model and returns the raw
// response text.
func (g *GeminiCapability) Transcribe(ctx context.Context, req Request) (string, error) {
	audioBytes, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return "", fmt.Errorf("failed to decode audio payload: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromBytes(audioBytes, req.MIMEType),
				genai.NewPartFromText(buildUserPrompt(req.ContextHint)),
			},
			genai.RoleUser,
		),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  "text/plain",
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	return response.Text(), nil
}
