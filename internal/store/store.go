package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDislikeLocked is returned when clearing the dislike flag on a
	// transcription that is both disliked and hand-edited.
	ErrDislikeLocked = errors.New("dislike flag is locked on an edited transcription")
)

// Report is one saved dictation document.
type Report struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transcription is one finalized turn attached to a report. Original
// holds the model's text from before the first hand correction; it is
// set once and never overwritten.
type Transcription struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Original  string    `json:"original,omitempty"`
	AudioData string    `json:"audio_data,omitempty"` // base64 WAV
	Timestamp time.Time `json:"timestamp"`
	Disliked  bool      `json:"disliked"`
	Edited    bool      `json:"edited"`
}

// Subscriber receives the full ordered transcription list for a report
// after every change. Subscribers are invoked synchronously and must not
// call back into the store.
type Subscriber func(transcriptions []Transcription)

// Store is the persistence contract. Timestamps are assigned by the
// store, never by the caller.
type Store interface {
	CreateReport(ctx context.Context, userID, title, content string) (Report, error)
	UpdateReport(ctx context.Context, id, title, content string) (Report, error)
	DeleteReport(ctx context.Context, id string) error
	GetReport(ctx context.Context, id string) (Report, error)
	ListReports(ctx context.Context, userID string) ([]Report, error)

	CreateTranscription(ctx context.Context, reportID, userID, text, audioData string) (Transcription, error)
	GetTranscription(ctx context.Context, id string) (Transcription, error)
	ListTranscriptions(ctx context.Context, reportID string) ([]Transcription, error)
	DeleteTranscription(ctx context.Context, id string) error

	// CorrectTranscription records a hand-edited text. The first
	// correction saves the model text into Original and marks the
	// record disliked and edited.
	CorrectTranscription(ctx context.Context, id, text string) (Transcription, error)

	// SetDisliked toggles the dislike flag, honoring the edited lock.
	SetDisliked(ctx context.Context, id string, disliked bool) (Transcription, error)

	// Subscribe registers for ordered transcription updates on a report
	// and returns the unsubscribe function. The subscriber fires once
	// immediately with the current list.
	Subscribe(reportID string, fn Subscriber) func()
}
