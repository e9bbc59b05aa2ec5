package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func newTestServer(t *testing.T, epc *mockEpicrisisService, history *mockHistoryService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Epicrisis: epc, History: history})
	require.NoError(t, err)
	return server
}

func TestServer_handleGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns sections and report", func(t *testing.T) {
		epc := &mockEpicrisisService{doc: sampleDocument()}
		server := newTestServer(t, epc, &mockHistoryService{})

		_, output, err := server.handleGenerate(ctx, nil, GenerateInput{EpisodeID: "ep-1"})

		require.NoError(t, err)
		assert.Equal(t, []string{"ep-1"}, epc.generated)
		assert.Empty(t, epc.regenerated)
		assert.Equal(t, "epc-1", output.EPCID)
		assert.Equal(t, "2026-03-04T09:30:00Z", output.GeneratedAt)
		require.Len(t, output.Sections, 3)
		assert.Equal(t, "evolution", output.Sections[0].Name)
		assert.Equal(t, "Evolución", output.Sections[0].Title)
		assert.Equal(t, "corrected", output.Sections[0].Status)
		assert.Equal(t, []string{"Enalapril 10 mg"}, output.Sections[1].Lines)
		assert.NotNil(t, output.Sections[2].Lines, "empty sections serialise as []")
		require.Len(t, output.ValidationReport, 1)
		assert.True(t, output.ValidationReport[0].AutoCorrected)
		assert.Equal(t, []string{"exemplar retrieval disabled"}, output.Warnings)
	})

	t.Run("regenerate flag reuses inputs", func(t *testing.T) {
		epc := &mockEpicrisisService{doc: sampleDocument()}
		server := newTestServer(t, epc, &mockHistoryService{})

		_, _, err := server.handleGenerate(ctx, nil, GenerateInput{EpisodeID: "ep-1", Regenerate: true})

		require.NoError(t, err)
		assert.Equal(t, []string{"ep-1"}, epc.regenerated)
		assert.Empty(t, epc.generated)
	})

	t.Run("concurrent run is an error", func(t *testing.T) {
		epc := &mockEpicrisisService{err: fmt.Errorf("episode ep-1: %w", domain.ErrConcurrentRun)}
		server := newTestServer(t, epc, &mockHistoryService{})

		_, _, err := server.handleGenerate(ctx, nil, GenerateInput{EpisodeID: "ep-1"})

		assert.ErrorIs(t, err, domain.ErrConcurrentRun)
	})

	t.Run("episode id is required", func(t *testing.T) {
		epc := &mockEpicrisisService{}
		server := newTestServer(t, epc, &mockHistoryService{})

		_, _, err := server.handleGenerate(ctx, nil, GenerateInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, epc.generated)
	})
}

func TestServer_handleLatest(t *testing.T) {
	ctx := context.Background()

	t.Run("returns latest version", func(t *testing.T) {
		history := &mockHistoryService{latest: &domain.EPCVersion{ID: "epc-1", Number: 3, Document: *sampleDocument()}}
		server := newTestServer(t, &mockEpicrisisService{}, history)

		_, output, err := server.handleLatest(ctx, nil, LatestInput{EpisodeID: "ep-1"})

		require.NoError(t, err)
		assert.Equal(t, 3, output.Version)
		assert.Equal(t, "epc-1", output.EPCID)
	})

	t.Run("not found", func(t *testing.T) {
		history := &mockHistoryService{err: domain.ErrNotFound}
		server := newTestServer(t, &mockEpicrisisService{}, history)

		_, _, err := server.handleLatest(ctx, nil, LatestInput{EpisodeID: "ep-9"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleFeedback(t *testing.T) {
	ctx := context.Background()
	yes, no := true, false

	tests := []struct {
		name    string
		input   FeedbackInput
		wantErr error
	}{
		{
			name:  "ok rating",
			input: FeedbackInput{EPCID: "epc-1", Section: "evolution", Rating: "ok"},
		},
		{
			name: "bad rating with answers",
			input: FeedbackInput{
				EPCID: "epc-1", Section: "medication", Rating: "bad", Text: "falta enalapril",
				HasOmissions: &yes, HasRepetitions: &no, IsConfusing: &no,
			},
		},
		{
			name:    "partial without answers",
			input:   FeedbackInput{EPCID: "epc-1", Section: "evolution", Rating: "partial", Text: "corta"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown section",
			input:   FeedbackInput{EPCID: "epc-1", Section: "summary", Rating: "ok"},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &mockHistoryService{}
			server := newTestServer(t, &mockEpicrisisService{}, history)

			_, output, err := server.handleFeedback(ctx, nil, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, history.recorded)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "fb-1", output.FeedbackID)
			assert.Equal(t, "2026-03-04T10:00:00Z", output.RecordedAt)
			require.Len(t, history.recorded, 1)
			assert.Equal(t, domain.Rating(tt.input.Rating), history.recorded[0].Rating)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		history := &mockHistoryService{err: errors.New("disk full")}
		server := newTestServer(t, &mockEpicrisisService{}, history)

		_, _, err := server.handleFeedback(ctx, nil, FeedbackInput{EPCID: "epc-1", Section: "evolution", Rating: "ok"})

		assert.EqualError(t, err, "disk full")
	})
}
