package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// MemoryStore is an in-memory Store implementation. It serializes all
// access under one mutex and notifies subscribers synchronously after
// each transcription change.
type MemoryStore struct {
	reports        map[string]*Report
	transcriptions map[string]*Transcription

	subscribers map[string][]subscriberEntry
	nextSubID   uint64

	now func() time.Time

	mu sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:        make(map[string]*Report),
		transcriptions: make(map[string]*Transcription),
		subscribers:    make(map[string][]subscriberEntry),
		now:            time.Now,
	}
}

// CreateReport stores a new report with server-assigned id and
// timestamps.
func (s *MemoryStore) CreateReport(_ context.Context, userID, title, content string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := &Report{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.reports[report.ID] = report

	return *report, nil
}

// UpdateReport replaces a report's title and content and refreshes its
// update timestamp.
func (s *MemoryStore) UpdateReport(_ context.Context, id, title, content string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}

	report.Title = title
	report.Content = content
	report.UpdatedAt = s.now()

	return *report, nil
}

// DeleteReport removes a report and its transcriptions.
func (s *MemoryStore) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	delete(s.reports, id)

	for tid, transcription := range s.transcriptions {
		if transcription.ReportID == id {
			delete(s.transcriptions, tid)
		}
	}
	delete(s.subscribers, id)

	return nil
}

// GetReport returns a report by id.
func (s *MemoryStore) GetReport(_ context.Context, id string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return *report, nil
}

// ListReports returns a user's reports, newest first.
func (s *MemoryStore) ListReports(_ context.Context, userID string) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reports []Report
	for _, report := range s.reports {
		if report.UserID == userID {
			reports = append(reports, *report)
		}
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	return reports, nil
}

// CreateTranscription stores a finalized turn and notifies the report's
// subscribers.
func (s *MemoryStore) CreateTranscription(_ context.Context, reportID, userID, text, audioData string) (Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcription := &Transcription{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		UserID:    userID,
		Text:      text,
		AudioData: audioData,
		Timestamp: s.now(),
	}
	s.transcriptions[transcription.ID] = transcription

	s.notifyLocked(reportID)

	return *transcription, nil
}

// GetTranscription returns a transcription by id.
func (s *MemoryStore) GetTranscription(_ context.Context, id string) (Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcription, ok := s.transcriptions[id]
	if !ok {
		return Transcription{}, fmt.Errorf("transcription %s: %w", id, ErrNotFound)
	}
	return *transcription, nil
}

// ListTranscriptions returns a report's transcriptions in timestamp
// order.
func (s *MemoryStore) ListTranscriptions(_ context.Context, reportID string) ([]Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listLocked(reportID), nil
}

// DeleteTranscription removes a transcription and notifies subscribers.
func (s *MemoryStore) DeleteTranscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcription, ok := s.transcriptions[id]
	if !ok {
		return fmt.Errorf("transcription %s: %w", id, ErrNotFound)
	}

	delete(s.transcriptions, id)
	s.notifyLocked(transcription.ReportID)

	return nil
}

// CorrectTranscription applies a hand correction. The first correction
// preserves the model text in Original and marks the record disliked and
// edited; the dislike can never be cleared afterwards.
func (s *MemoryStore) CorrectTranscription(_ context.Context, id, text string) (Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcription, ok := s.transcriptions[id]
	if !ok {
		return Transcription{}, fmt.Errorf("transcription %s: %w", id, ErrNotFound)
	}

	if !transcription.Edited {
		transcription.Original = transcription.Text
	}
	transcription.Text = text
	transcription.Edited = true
	transcription.Disliked = true

	s.notifyLocked(transcription.ReportID)

	return *transcription, nil
}

// SetDisliked toggles the dislike flag. Edited records keep the flag
// permanently once set.
func (s *MemoryStore) SetDisliked(_ context.Context, id string, disliked bool) (Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcription, ok := s.transcriptions[id]
	if !ok {
		return Transcription{}, fmt.Errorf("transcription %s: %w", id, ErrNotFound)
	}

	if !disliked && transcription.Disliked && transcription.Edited {
		return Transcription{}, ErrDislikeLocked
	}

	transcription.Disliked = disliked
	s.notifyLocked(transcription.ReportID)

	return *transcription, nil
}

// Subscribe registers a subscriber for one report's transcription list
// and fires it immediately with the current state.
func (s *MemoryStore) Subscribe(reportID string, fn Subscriber) func() {
	s.mu.Lock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers[reportID] = append(s.subscribers[reportID], subscriberEntry{id: id, fn: fn})
	current := s.listLocked(reportID)

	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		entries := s.subscribers[reportID]
		for i, entry := range entries {
			if entry.id == id {
				s.subscribers[reportID] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (s *MemoryStore) listLocked(reportID string) []Transcription {
	var transcriptions []Transcription
	for _, transcription := range s.transcriptions {
		if transcription.ReportID == reportID {
			transcriptions = append(transcriptions, *transcription)
		}
	}

	sort.Slice(transcriptions, func(i, j int) bool {
		if transcriptions[i].Timestamp.Equal(transcriptions[j].Timestamp) {
			return transcriptions[i].ID < transcriptions[j].ID
		}
		return transcriptions[i].Timestamp.Before(transcriptions[j].Timestamp)
	})

	return transcriptions
}

func (s *MemoryStore) notifyLocked(reportID string) {
	entries := s.subscribers[reportID]
	if len(entries) == 0 {
		return
	}

	current := s.listLocked(reportID)
	for _, entry := range entries {
		entry.fn(current)
	}
}
