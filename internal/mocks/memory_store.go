package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
	"lineup-chat/internal/repositories"
)

// MemoryStore is an in-memory ThreadRepository and MessageRepository with
// transactional snapshots and per-operation failure injection.
type MemoryStore struct {
	mu       sync.Mutex
	state    memoryState
	failures map[string]error

	// Now stamps created rows; tests may replace it.
	Now func() time.Time
	// LastInsertedThreadID records the id of the most recent InsertThread, committed or not.
	LastInsertedThreadID string
}

type memoryState struct {
	threads      map[string]models.Thread
	directKeys   map[string]string
	participants map[string][]models.Participant
	messages     map[string]models.Message
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			threads:      map[string]models.Thread{},
			directKeys:   map[string]string{},
			participants: map[string][]models.Participant{},
			messages:     map[string]models.Message{},
		},
		failures: map[string]error{},
		Now:      time.Now,
	}
}

// Fail makes every later call of op return err. A nil err clears it.
func (s *MemoryStore) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// ThreadCount reports how many threads exist.
func (s *MemoryStore) ThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.threads)
}

// SeedThread inserts a thread with the given members, bypassing resolver rules.
func (s *MemoryStore) SeedThread(threadType models.ThreadType, creator string, members ...string) models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.state.insertThread(models.NewThread{ThreadType: threadType, CreatedByUserID: creator}, s.Now())
	for _, member := range members {
		s.state.participants[thread.ID] = append(s.state.participants[thread.ID], models.Participant{
			ThreadID: thread.ID, UserID: member, Role: models.RoleMember, JoinedAt: s.Now(),
		})
	}
	return thread
}

// SeedMessage stores a message with an explicit creation time.
func (s *MemoryStore) SeedMessage(threadID, userID, content string, createdAt time.Time) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{ID: uuid.NewString(), ThreadID: threadID, UserID: userID, Content: content, CreatedAt: createdAt}
	s.state.messages[msg.ID] = msg
	return msg
}

func (s *MemoryStore) failure(op string) error {
	return s.failures[op]
}

func (s *MemoryStore) FindParticipations(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindParticipations"); err != nil {
		return nil, err
	}
	var ids []string
	for threadID, members := range s.state.participants {
		for _, p := range members {
			if p.UserID == userID {
				ids = append(ids, threadID)
				break
			}
		}
	}
	return ids, nil
}

func (s *MemoryStore) GetParticipants(ctx context.Context, threadID string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetParticipants"); err != nil {
		return nil, err
	}
	return s.state.getParticipants(threadID), nil
}

func (s *MemoryStore) GetThreadByID(ctx context.Context, threadID string) (models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetThreadByID"); err != nil {
		return models.Thread{}, err
	}
	return s.state.getThread(threadID)
}

func (s *MemoryStore) ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListThreadsForUser"); err != nil {
		return nil, err
	}
	var threads []models.Thread
	for threadID, members := range s.state.participants {
		for _, p := range members {
			if p.UserID == userID {
				threads = append(threads, s.state.threads[threadID])
				break
			}
		}
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].CreatedAt.After(threads[j].CreatedAt) })
	return threads, nil
}

func (s *MemoryStore) IsParticipant(ctx context.Context, threadID string, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("IsParticipant"); err != nil {
		return false, err
	}
	for _, p := range s.state.participants[threadID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpdateThread(ctx context.Context, threadID string, update models.ThreadUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateThread"); err != nil {
		return err
	}
	return s.state.updateThread(threadID, update)
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteThread"); err != nil {
		return err
	}
	if _, ok := s.state.threads[threadID]; !ok {
		return apperr.NotFound("thread not found")
	}
	delete(s.state.threads, threadID)
	delete(s.state.participants, threadID)
	for key, id := range s.state.directKeys {
		if id == threadID {
			delete(s.state.directKeys, key)
		}
	}
	for id, msg := range s.state.messages {
		if msg.ThreadID == threadID {
			delete(s.state.messages, id)
		}
	}
	return nil
}

// InTx runs fn against a snapshot and restores it when fn fails.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx repositories.ThreadTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InTx"); err != nil {
		return err
	}

	snapshot := s.state.clone()
	if err := fn(&memoryTx{store: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) GetThreadByID(ctx context.Context, threadID string) (models.Thread, error) {
	return t.store.state.getThread(threadID)
}

func (t *memoryTx) GetParticipants(ctx context.Context, threadID string) ([]models.Participant, error) {
	return t.store.state.getParticipants(threadID), nil
}

func (t *memoryTx) InsertThread(ctx context.Context, fields models.NewThread) (models.Thread, error) {
	if err := t.store.failure("InsertThread"); err != nil {
		return models.Thread{}, err
	}
	if fields.DirectKey != nil {
		if _, exists := t.store.state.directKeys[*fields.DirectKey]; exists {
			return models.Thread{}, apperr.Conflict("insert thread: already exists")
		}
	}
	thread := t.store.state.insertThread(fields, t.store.Now())
	t.store.LastInsertedThreadID = thread.ID
	return thread, nil
}

func (t *memoryTx) InsertParticipants(ctx context.Context, threadID string, participants []models.NewParticipant) error {
	for _, p := range participants {
		if err := t.store.failure("InsertParticipants"); err != nil {
			return apperr.PartialCreation("insert participants", err)
		}
		for _, existing := range t.store.state.participants[threadID] {
			if existing.UserID == p.UserID {
				return apperr.PartialCreation("insert participants", apperr.Conflict("duplicate participant"))
			}
		}
		t.store.state.participants[threadID] = append(t.store.state.participants[threadID], models.Participant{
			ThreadID: threadID, UserID: p.UserID, Role: p.Role, JoinedAt: t.store.Now(),
		})
	}
	return nil
}

func (t *memoryTx) UpdateThread(ctx context.Context, threadID string, update models.ThreadUpdate) error {
	if err := t.store.failure("TxUpdateThread"); err != nil {
		return err
	}
	return t.store.state.updateThread(threadID, update)
}

func (s *MemoryStore) InsertMessage(ctx context.Context, threadID string, userID string, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertMessage"); err != nil {
		return models.Message{}, err
	}
	msg := models.Message{ID: uuid.NewString(), ThreadID: threadID, UserID: userID, Content: content, CreatedAt: s.Now()}
	s.state.messages[msg.ID] = msg
	return msg, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.state.messages[messageID]
	if !ok {
		return models.Message{}, apperr.NotFound("message not found")
	}
	return msg, nil
}

func (s *MemoryStore) UpdateMessageContent(ctx context.Context, messageID string, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.state.messages[messageID]
	if !ok {
		return models.Message{}, apperr.NotFound("message not found")
	}
	now := s.Now()
	msg.Content = content
	msg.UpdatedAt = &now
	s.state.messages[messageID] = msg
	return msg, nil
}

func (s *MemoryStore) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.messages[messageID]; !ok {
		return apperr.NotFound("message not found")
	}
	delete(s.state.messages, messageID)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListMessages"); err != nil {
		return nil, err
	}
	msgs := []models.Message{}
	for _, msg := range s.state.messages {
		if msg.ThreadID == threadID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *MemoryStore) LastMessages(ctx context.Context, threadIDs []string) (map[string]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range threadIDs {
		wanted[id] = true
	}
	last := map[string]models.Message{}
	for _, msg := range s.state.messages {
		if !wanted[msg.ThreadID] {
			continue
		}
		if current, ok := last[msg.ThreadID]; !ok || msg.CreatedAt.After(current.CreatedAt) {
			last[msg.ThreadID] = msg
		}
	}
	return last, nil
}

func (st *memoryState) insertThread(fields models.NewThread, now time.Time) models.Thread {
	thread := models.Thread{
		ID:              uuid.NewString(),
		ThreadType:      fields.ThreadType,
		CreatedByUserID: fields.CreatedByUserID,
		CreatedAt:       now,
		GroupName:       fields.GroupName,
		GroupImage:      fields.GroupImage,
	}
	st.threads[thread.ID] = thread
	if fields.DirectKey != nil {
		st.directKeys[*fields.DirectKey] = thread.ID
	}
	return thread
}

func (st *memoryState) getThread(threadID string) (models.Thread, error) {
	thread, ok := st.threads[threadID]
	if !ok {
		return models.Thread{}, apperr.NotFound("thread not found")
	}
	return thread, nil
}

func (st *memoryState) getParticipants(threadID string) []models.Participant {
	return append([]models.Participant(nil), st.participants[threadID]...)
}

func (st *memoryState) updateThread(threadID string, update models.ThreadUpdate) error {
	thread, ok := st.threads[threadID]
	if !ok {
		return apperr.NotFound("thread not found")
	}
	if update.ThreadType != nil {
		thread.ThreadType = *update.ThreadType
	}
	if update.GroupName != nil {
		name := *update.GroupName
		thread.GroupName = &name
	}
	if update.GroupImage != nil {
		image := *update.GroupImage
		thread.GroupImage = &image
	}
	if update.ClearDirectKey {
		for key, id := range st.directKeys {
			if id == threadID {
				delete(st.directKeys, key)
			}
		}
	}
	st.threads[threadID] = thread
	return nil
}

func (st memoryState) clone() memoryState {
	out := memoryState{
		threads:      make(map[string]models.Thread, len(st.threads)),
		directKeys:   make(map[string]string, len(st.directKeys)),
		participants: make(map[string][]models.Participant, len(st.participants)),
		messages:     make(map[string]models.Message, len(st.messages)),
	}
	for k, v := range st.threads {
		out.threads[k] = v
	}
	for k, v := range st.directKeys {
		out.directKeys[k] = v
	}
	for k, v := range st.participants {
		out.participants[k] = append([]models.Participant(nil), v...)
	}
	for k, v := range st.messages {
		out.messages[k] = v
	}
	return out
}

var _ repositories.ThreadRepository = (*MemoryStore)(nil)
var _ repositories.MessageRepository = (*MemoryStore)(nil)
