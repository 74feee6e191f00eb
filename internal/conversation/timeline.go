package conversation

import (
	"sort"
	"sync"
	"time"

	"lineup-chat/internal/models"
)

// Timeline is a client-side view of one thread. Messages can arrive from the
// history backfill and the realtime feed in any order and more than once;
// the view keeps one copy of each, ordered by created_at.
//
// Edits and deletions may also overtake the message they refer to. Deleted
// ids are remembered so a late copy is not resurrected, and edits for unknown
// ids are held until the message shows up.
type Timeline struct {
	mu      sync.Mutex
	msgs    []models.Message
	ids     map[string]int
	removed map[string]struct{}
	edits   map[string]models.Message
}

func NewTimeline() *Timeline {
	return &Timeline{
		ids:     map[string]int{},
		removed: map[string]struct{}{},
		edits:   map[string]models.Message{},
	}
}

// Apply merges msg into the view. It returns false when the id was already
// present or has been deleted.
func (t *Timeline) Apply(msg models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.ids[msg.ID]; seen {
		return false
	}
	if _, gone := t.removed[msg.ID]; gone {
		return false
	}
	if edit, ok := t.edits[msg.ID]; ok {
		delete(t.edits, msg.ID)
		if !olderEdit(edit.UpdatedAt, msg.UpdatedAt) {
			msg.Content = edit.Content
			msg.UpdatedAt = edit.UpdatedAt
		}
	}
	pos := sort.Search(len(t.msgs), func(i int) bool {
		return messageBefore(msg, t.msgs[i])
	})
	t.msgs = append(t.msgs, models.Message{})
	copy(t.msgs[pos+1:], t.msgs[pos:])
	t.msgs[pos] = msg
	t.reindex(pos)
	return true
}

// Update replaces the content of a known message and reports whether the
// view changed. An edit for an id not seen yet is held for Apply.
func (t *Timeline) Update(msg models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.ids[msg.ID]
	if !ok {
		if _, gone := t.removed[msg.ID]; !gone {
			if held, exists := t.edits[msg.ID]; !exists || !olderEdit(msg.UpdatedAt, held.UpdatedAt) {
				t.edits[msg.ID] = msg
			}
		}
		return false
	}
	t.msgs[i].Content = msg.Content
	t.msgs[i].UpdatedAt = msg.UpdatedAt
	return true
}

// Remove drops a message by id and reports whether it was in the view. The
// id stays deleted even if the message arrives later.
func (t *Timeline) Remove(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removed[messageID] = struct{}{}
	delete(t.edits, messageID)
	i, ok := t.ids[messageID]
	if !ok {
		return false
	}
	t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
	delete(t.ids, messageID)
	t.reindex(i)
	return true
}

// Messages returns a copy of the ordered view.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// olderEdit reports whether edit a is known to predate edit b.
func olderEdit(a, b *time.Time) bool {
	return a != nil && b != nil && a.Before(*b)
}

func (t *Timeline) reindex(from int) {
	for i := from; i < len(t.msgs); i++ {
		t.ids[t.msgs[i].ID] = i
	}
}
