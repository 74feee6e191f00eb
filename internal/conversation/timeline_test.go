package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineup-chat/internal/models"
)

func TestTimelineIgnoresRedelivery(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := models.Message{ID: "m1", Content: "hi", CreatedAt: at}

	assert.True(t, tl.Apply(msg))
	assert.False(t, tl.Apply(msg))
	assert.Equal(t, 1, tl.Len())
}

func TestTimelineKeepsCreatedAtOrder(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tl.Apply(models.Message{ID: "m3", CreatedAt: at.Add(2 * time.Second)})
	tl.Apply(models.Message{ID: "m1", CreatedAt: at})
	tl.Apply(models.Message{ID: "m2", CreatedAt: at.Add(time.Second)})

	ids := []string{}
	for _, m := range tl.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestTimelineUpdateAndRemove(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tl.Apply(models.Message{ID: "m1", Content: "a", CreatedAt: at})
	tl.Apply(models.Message{ID: "m2", Content: "b", CreatedAt: at.Add(time.Second)})

	edited := at.Add(time.Minute)
	assert.True(t, tl.Update(models.Message{ID: "m1", Content: "a2", UpdatedAt: &edited}))
	assert.False(t, tl.Update(models.Message{ID: "nope"}))

	assert.True(t, tl.Remove("m1"))
	assert.False(t, tl.Remove("m1"))

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)

	// Index stays consistent after removal.
	assert.True(t, tl.Update(models.Message{ID: "m2", Content: "b2"}))
	assert.Equal(t, "b2", tl.Messages()[0].Content)
}

func TestTimelineDeletionBeforeArrivalIsKept(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.False(t, tl.Remove("m1"))
	assert.False(t, tl.Apply(models.Message{ID: "m1", Content: "oops", CreatedAt: at}))
	assert.Zero(t, tl.Len())
}

func TestTimelineEditBeforeArrivalIsApplied(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	edited := at.Add(time.Minute)

	assert.False(t, tl.Update(models.Message{ID: "m1", Content: "fixed", UpdatedAt: &edited}))
	assert.Zero(t, tl.Len())

	require.True(t, tl.Apply(models.Message{ID: "m1", Content: "typo", CreatedAt: at}))
	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "fixed", msgs[0].Content)
	require.NotNil(t, msgs[0].UpdatedAt)
	assert.Equal(t, edited, *msgs[0].UpdatedAt)
}

func TestTimelineHeldEditDoesNotOverwriteNewerRow(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := at.Add(time.Minute)
	second := at.Add(2 * time.Minute)

	tl.Update(models.Message{ID: "m1", Content: "v1", UpdatedAt: &first})
	tl.Apply(models.Message{ID: "m1", Content: "v2", CreatedAt: at, UpdatedAt: &second})

	assert.Equal(t, "v2", tl.Messages()[0].Content)
}
