package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laudoscribe/laudoscribe/internal/audio"
	"github.com/laudoscribe/laudoscribe/internal/reconcile"
)

func TestTextFilenameIsDated(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "transcricao-2026-03-10.txt", TextFilename(ts))
}

func TestTextExport(t *testing.T) {
	assert.Equal(t, "Laudo completo.\n", string(Text("  Laudo completo.  ")))
	assert.Empty(t, Text("   "))
}

func TestMarkdownRendering(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 30, 5, 0, time.UTC)
	turns := []reconcile.Turn{
		{ID: 1, Text: "Nódulo hepático, medindo 2cm.", Status: reconcile.StatusFinal, Timestamp: ts},
		{ID: 2, Text: "derrame pleural", Status: reconcile.StatusFinal, Timestamp: ts, Failed: true},
		{ID: 3, Text: "", Status: reconcile.StatusFinal, Timestamp: ts},
	}

	md := Markdown(Metadata{
		Title:     "TC de tórax",
		Model:     "gemini-2.5-pro",
		Generated: ts,
	}, "Nódulo hepático, medindo 2cm.\n\nderrame pleural", turns)

	assert.True(t, strings.HasPrefix(md, "# TC de tórax\n"))
	assert.Contains(t, md, "`gemini-2.5-pro`")
	assert.Contains(t, md, "- Turnos: 3")
	assert.Contains(t, md, "1. [14:30:05] Nódulo hepático, medindo 2cm.")
	assert.Contains(t, md, "2. [14:30:05] ⚠ derrame pleural")
	assert.NotContains(t, md, "3. [", "empty turns are skipped")
}

func TestMarkdownWithoutTurnsOmitsSection(t *testing.T) {
	md := Markdown(Metadata{}, "Documento.", nil)

	assert.True(t, strings.HasPrefix(md, "# Transcrição\n"))
	assert.NotContains(t, md, "## Turnos")
}

func TestPlaybackProducesValidWAV(t *testing.T) {
	pcm := make([]byte, 3200)

	wavData, err := Playback(pcm, 16000, 1, 16)
	require.NoError(t, err)

	assert.Len(t, wavData, len(pcm)+44)
	assert.NoError(t, audio.ValidateWAV(wavData))
}

func TestPlaybackRejectsInvalidParams(t *testing.T) {
	_, err := Playback([]byte{0, 0}, 0, 1, 16)
	assert.Error(t, err)
}
