package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func testVersion(id, episodeID string, number int) *domain.EPCVersion {
	return &domain.EPCVersion{
		ID:        id,
		EpisodeID: episodeID,
		Number:    number,
		Document: domain.EPCDocument{
			ID:        id,
			EpisodeID: episodeID,
			Sections:  []domain.EPCSection{domain.NewSection(domain.SectionEvolution)},
		},
		CreatedAt: time.Now(),
	}
}

func testEvent(epcID, episodeID, action string, at time.Time) domain.AuditEvent {
	return domain.AuditEvent{
		ID:        epcID + "-" + action,
		EPCID:     epcID,
		EpisodeID: episodeID,
		Actor:     domain.DefaultActor,
		Action:    action,
		At:        at,
	}
}

func TestHistoryStore_SaveAndLatest(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveVersion(ctx, testVersion("v1", "ep-1", 1), testEvent("v1", "ep-1", domain.ActionGenerated, now)))
	require.NoError(t, store.SaveVersion(ctx, testVersion("v2", "ep-1", 2), testEvent("v2", "ep-1", domain.ActionRegenerated, now.Add(time.Second))))

	latest, err := store.LatestVersion(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", latest.ID)
	assert.Equal(t, 2, latest.Number)

	list, err := store.ListVersions(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Number)
	assert.Equal(t, 2, list[1].Number)

	events, err := store.ListEvents(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActionGenerated, events[0].Action)
	assert.Equal(t, domain.ActionRegenerated, events[1].Action)
}

func TestHistoryStore_DuplicateNumberRejected(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveVersion(ctx, testVersion("v1", "ep-1", 1), domain.AuditEvent{EpisodeID: "ep-1"}))
	err := store.SaveVersion(ctx, testVersion("v1b", "ep-1", 1), domain.AuditEvent{EpisodeID: "ep-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// The rejected version's event was not stored.
	events, err := store.ListEvents(ctx, "ep-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHistoryStore_NotFound(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()

	_, err := store.LatestVersion(ctx, "ep-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetVersion(ctx, "v-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := store.ListVersions(ctx, "ep-x")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHistoryStore_ReturnedVersionIsACopy(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveVersion(ctx, testVersion("v1", "ep-1", 1), domain.AuditEvent{EpisodeID: "ep-1"}))

	got, err := store.GetVersion(ctx, "v1")
	require.NoError(t, err)
	got.Document.Sections[0].Text = "changed"

	again, err := store.GetVersion(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, again.Document.Sections[0].Text)
}

func TestHistoryStore_Feedback(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.SaveVersion(ctx, testVersion("v1", "ep-1", 1), testEvent("v1", "ep-1", domain.ActionGenerated, now)))

	later := &domain.FeedbackEntry{ID: "f2", EPCID: "v1", Section: domain.SectionEvolution, Rating: domain.RatingOK, Timestamp: now.Add(2 * time.Second)}
	earlier := &domain.FeedbackEntry{ID: "f1", EPCID: "v1", Section: domain.SectionMedication, Rating: domain.RatingOK, Timestamp: now.Add(time.Second)}
	require.NoError(t, store.SaveFeedback(ctx, later, testEvent("v1", "ep-1", domain.ActionFeedbackRecorded, later.Timestamp)))
	require.NoError(t, store.SaveFeedback(ctx, earlier, testEvent("v1", "ep-1", domain.ActionFeedbackRecorded, earlier.Timestamp)))

	entries, err := store.ListFeedback(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "f1", entries[0].ID)
	assert.Equal(t, "f2", entries[1].ID)

	events, err := store.ListEvents(ctx, "ep-1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestHistoryStore_FeedbackUnknownVersion(t *testing.T) {
	store := NewHistoryStore()
	err := store.SaveFeedback(context.Background(), &domain.FeedbackEntry{ID: "f1", EPCID: "nope"}, domain.AuditEvent{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryStore_ConcurrentSaves(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "v" + string(rune('a'+n))
			_ = store.SaveVersion(ctx, testVersion(id, "ep-1", n), domain.AuditEvent{EpisodeID: "ep-1"})
		}(i)
	}
	wg.Wait()

	list, err := store.ListVersions(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, list, 20)
	for i, v := range list {
		assert.Equal(t, i+1, v.Number)
	}
}
