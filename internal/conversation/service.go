// Package conversation resolves threads and participants and enforces the
// messaging rules layered on top of the relational store.
package conversation

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
	"lineup-chat/internal/observability"
	"lineup-chat/internal/repositories"
)

var tracer = otel.Tracer("lineup-chat/conversation")

// Notifier pushes thread changes to realtime subscribers.
type Notifier interface {
	PublishMessage(threadID string, msg models.Message)
	PublishMessageUpdate(threadID string, msg models.Message)
	PublishMessageDeletion(threadID string, messageID string)
	PublishThreadDeleted(threadID string)
}

type noopNotifier struct{}

func (noopNotifier) PublishMessage(string, models.Message)       {}
func (noopNotifier) PublishMessageUpdate(string, models.Message) {}
func (noopNotifier) PublishMessageDeletion(string, string)       {}
func (noopNotifier) PublishThreadDeleted(string)                 {}

// Notifiers fans every change out to each notifier in order.
type Notifiers []Notifier

func (ns Notifiers) PublishMessage(threadID string, msg models.Message) {
	for _, n := range ns {
		n.PublishMessage(threadID, msg)
	}
}

func (ns Notifiers) PublishMessageUpdate(threadID string, msg models.Message) {
	for _, n := range ns {
		n.PublishMessageUpdate(threadID, msg)
	}
}

func (ns Notifiers) PublishMessageDeletion(threadID string, messageID string) {
	for _, n := range ns {
		n.PublishMessageDeletion(threadID, messageID)
	}
}

func (ns Notifiers) PublishThreadDeleted(threadID string) {
	for _, n := range ns {
		n.PublishThreadDeleted(threadID)
	}
}

// Service is the conversation resolver plus message operations.
type Service struct {
	threads  repositories.ThreadRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileRepository
	notifier Notifier
	locks    *pairLocks
}

// NewService wires a Service. A nil notifier disables realtime pushes.
func NewService(threads repositories.ThreadRepository, messages repositories.MessageRepository, profiles repositories.ProfileRepository, notifier Notifier) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		threads:  threads,
		messages: messages,
		profiles: profiles,
		notifier: notifier,
		locks:    newPairLocks(),
	}
}

// GetOrCreateDirectThread returns the direct thread shared by userA and userB,
// creating it when none exists. Calls for the same pair are serialized in-process
// and the store rejects a second direct thread for a pair.
func (s *Service) GetOrCreateDirectThread(ctx context.Context, userA string, userB string) (models.Thread, error) {
	ctx, span := tracer.Start(ctx, "conversation.GetOrCreateDirectThread")
	defer span.End()

	userA, userB = models.NormalizeUserID(userA), models.NormalizeUserID(userB)
	if userA == "" || userB == "" {
		return models.Thread{}, apperr.Validation("both participants are required")
	}
	if userA == userB {
		return models.Thread{}, apperr.Validation("cannot start a conversation with yourself")
	}

	thread, found, err := s.findDirectThread(ctx, userA, userB)
	if err != nil {
		return models.Thread{}, s.fail("get_or_create_direct", "", userA, err)
	}
	if found {
		observability.IncDirectThreadReused()
		return thread, nil
	}

	release := s.locks.Lock(models.DirectKey(userA, userB))
	defer release()

	thread, found, err = s.findDirectThread(ctx, userA, userB)
	if err != nil {
		return models.Thread{}, s.fail("get_or_create_direct", "", userA, err)
	}
	if found {
		observability.IncDirectThreadReused()
		return thread, nil
	}

	thread, err = s.createDirectThread(ctx, userA, userB)
	if apperr.KindOf(err) == apperr.KindConflict {
		// Another instance won the race for this pair.
		existing, ok, findErr := s.findDirectThread(ctx, userA, userB)
		if findErr == nil && ok {
			observability.IncDirectThreadReused()
			return existing, nil
		}
	}
	if err != nil {
		return models.Thread{}, s.fail("get_or_create_direct", "", userA, err)
	}

	span.SetAttributes(attribute.String("thread_id", thread.ID))
	observability.IncThreadCreated(string(models.ThreadTypeDirect))
	log.Info("direct thread created", "thread_id", thread.ID, "user_a", userA, "user_b", userB)
	return thread, nil
}

func (s *Service) findDirectThread(ctx context.Context, userA string, userB string) (models.Thread, bool, error) {
	threadsA, err := s.threads.FindParticipations(ctx, userA)
	if err != nil {
		return models.Thread{}, false, err
	}
	if len(threadsA) == 0 {
		return models.Thread{}, false, nil
	}

	threadsB, err := s.threads.FindParticipations(ctx, userB)
	if err != nil {
		return models.Thread{}, false, err
	}
	inB := make(map[string]struct{}, len(threadsB))
	for _, id := range threadsB {
		inB[id] = struct{}{}
	}

	for _, threadID := range threadsA {
		if _, shared := inB[threadID]; !shared {
			continue
		}
		participants, err := s.threads.GetParticipants(ctx, threadID)
		if err != nil {
			return models.Thread{}, false, err
		}
		if len(participants) != 2 {
			continue
		}
		thread, err := s.threads.GetThreadByID(ctx, threadID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			continue
		}
		if err != nil {
			return models.Thread{}, false, err
		}
		if thread.ThreadType == models.ThreadTypeDirect {
			return thread, true, nil
		}
	}
	return models.Thread{}, false, nil
}

func (s *Service) createDirectThread(ctx context.Context, userA string, userB string) (models.Thread, error) {
	key := models.DirectKey(userA, userB)
	var thread models.Thread
	err := s.threads.InTx(ctx, func(tx repositories.ThreadTx) error {
		var err error
		thread, err = tx.InsertThread(ctx, models.NewThread{
			ThreadType:      models.ThreadTypeDirect,
			CreatedByUserID: userA,
			DirectKey:       &key,
		})
		if err != nil {
			return err
		}
		return tx.InsertParticipants(ctx, thread.ID, []models.NewParticipant{
			{UserID: userA, Role: models.RoleMember},
			{UserID: userB, Role: models.RoleMember},
		})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPartialCreation {
			observability.IncThreadRollback("create_direct")
		}
		return models.Thread{}, err
	}
	return thread, nil
}

// CreateGroupThread always creates a new group thread; identical memberships are not reused.
func (s *Service) CreateGroupThread(ctx context.Context, creatorID string, otherIDs []string, groupName string) (models.Thread, error) {
	ctx, span := tracer.Start(ctx, "conversation.CreateGroupThread")
	defer span.End()

	creatorID = models.NormalizeUserID(creatorID)
	if creatorID == "" {
		return models.Thread{}, apperr.Validation("creator is required")
	}
	others := dedupe(otherIDs, creatorID)
	if len(others) == 0 {
		return models.Thread{}, apperr.Validation("a group needs at least one other participant")
	}

	fields := models.NewThread{ThreadType: models.ThreadTypeGroup, CreatedByUserID: creatorID}
	if name := strings.TrimSpace(groupName); name != "" {
		fields.GroupName = &name
	}

	members := make([]models.NewParticipant, 0, len(others)+1)
	members = append(members, models.NewParticipant{UserID: creatorID, Role: models.RoleAdmin})
	for _, id := range others {
		members = append(members, models.NewParticipant{UserID: id, Role: models.RoleMember})
	}

	var thread models.Thread
	err := s.threads.InTx(ctx, func(tx repositories.ThreadTx) error {
		var err error
		thread, err = tx.InsertThread(ctx, fields)
		if err != nil {
			return err
		}
		return tx.InsertParticipants(ctx, thread.ID, members)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPartialCreation {
			observability.IncThreadRollback("create_group")
		}
		return models.Thread{}, s.fail("create_group", "", creatorID, err)
	}

	span.SetAttributes(attribute.String("thread_id", thread.ID), attribute.Int("participants", len(members)))
	observability.IncThreadCreated(string(models.ThreadTypeGroup))
	log.Info("group thread created", "thread_id", thread.ID, "user_id", creatorID, "participants", len(members))
	return thread, nil
}

// AddParticipants expands a thread's membership. The type refresh and the
// inserts commit together; ids already in the thread are ignored.
func (s *Service) AddParticipants(ctx context.Context, actorID string, threadID string, newUserIDs []string) (models.Thread, []models.Participant, error) {
	ctx, span := tracer.Start(ctx, "conversation.AddParticipants", trace.WithAttributes(attribute.String("thread_id", threadID)))
	defer span.End()

	if threadID == "" {
		return models.Thread{}, nil, apperr.Validation("thread_id is required")
	}
	actorID = models.NormalizeUserID(actorID)
	candidates := dedupe(newUserIDs, "")
	if len(candidates) == 0 {
		return models.Thread{}, nil, apperr.Validation("at least one user is required")
	}

	var (
		thread       models.Thread
		participants []models.Participant
	)
	err := s.threads.InTx(ctx, func(tx repositories.ThreadTx) error {
		var err error
		thread, err = tx.GetThreadByID(ctx, threadID)
		if err != nil {
			return err
		}
		current, err := tx.GetParticipants(ctx, threadID)
		if err != nil {
			return err
		}
		if !containsUser(current, actorID) {
			return apperr.Unauthorized("only participants can add people")
		}

		toAdd := make([]models.NewParticipant, 0, len(candidates))
		for _, id := range candidates {
			if !containsUser(current, id) {
				toAdd = append(toAdd, models.NewParticipant{UserID: id, Role: models.RoleMember})
			}
		}
		if len(toAdd) == 0 {
			return apperr.Validation("everyone is already a participant")
		}

		refreshed := ClassifyThread(len(current) + len(toAdd))
		if thread.ThreadType != refreshed {
			update := models.ThreadUpdate{ThreadType: &refreshed, ClearDirectKey: refreshed == models.ThreadTypeGroup}
			if err := tx.UpdateThread(ctx, threadID, update); err != nil {
				return err
			}
			thread.ThreadType = refreshed
		}

		if err := tx.InsertParticipants(ctx, threadID, toAdd); err != nil {
			return err
		}
		participants, err = tx.GetParticipants(ctx, threadID)
		return err
	})
	if err != nil {
		return models.Thread{}, nil, s.fail("add_participants", threadID, actorID, err)
	}

	log.Info("participants added", "thread_id", threadID, "user_id", actorID, "participants", len(participants))
	return thread, participants, nil
}

// GetThread returns the viewer's summary of a thread.
func (s *Service) GetThread(ctx context.Context, viewerID string, threadID string) (models.ThreadSummary, error) {
	thread, err := s.threads.GetThreadByID(ctx, threadID)
	if err != nil {
		return models.ThreadSummary{}, s.fail("get_thread", threadID, viewerID, err)
	}
	participants, err := s.threads.GetParticipants(ctx, threadID)
	if err != nil {
		return models.ThreadSummary{}, s.fail("get_thread", threadID, viewerID, err)
	}
	if !containsUser(participants, viewerID) {
		return models.ThreadSummary{}, apperr.Unauthorized("not a thread participant")
	}

	lookup, err := s.lookupNames(ctx, participantIDs(participants))
	if err != nil {
		return models.ThreadSummary{}, s.fail("get_thread", threadID, viewerID, err)
	}
	return summarize(thread, participants, viewerID, lookup), nil
}

// ListThreadsForUser returns the user's threads with computed titles and last messages.
func (s *Service) ListThreadsForUser(ctx context.Context, userID string) ([]models.ThreadSummary, error) {
	ctx, span := tracer.Start(ctx, "conversation.ListThreadsForUser")
	defer span.End()

	threads, err := s.threads.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, s.fail("list_threads", "", userID, err)
	}

	ids := make([]string, 0, len(threads))
	membersByThread := make(map[string][]models.Participant, len(threads))
	var everyone []string
	for _, thread := range threads {
		participants, err := s.threads.GetParticipants(ctx, thread.ID)
		if err != nil {
			return nil, s.fail("list_threads", thread.ID, userID, err)
		}
		ids = append(ids, thread.ID)
		membersByThread[thread.ID] = participants
		everyone = append(everyone, participantIDs(participants)...)
	}

	last, err := s.messages.LastMessages(ctx, ids)
	if err != nil {
		return nil, s.fail("list_threads", "", userID, err)
	}
	lookup, err := s.lookupNames(ctx, dedupe(everyone, ""))
	if err != nil {
		return nil, s.fail("list_threads", "", userID, err)
	}

	summaries := make([]models.ThreadSummary, 0, len(threads))
	for _, thread := range threads {
		summary := summarize(thread, membersByThread[thread.ID], userID, lookup)
		if msg, ok := last[thread.ID]; ok {
			msg := msg
			summary.LastMessage = &msg
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// UpdateThreadDetails changes the cosmetic group_name and group_image fields.
func (s *Service) UpdateThreadDetails(ctx context.Context, actorID string, threadID string, groupName *string, groupImage *string) (models.Thread, error) {
	if groupName == nil && groupImage == nil {
		return models.Thread{}, apperr.Validation("nothing to update")
	}
	if err := s.requireParticipant(ctx, threadID, actorID); err != nil {
		return models.Thread{}, s.fail("update_thread", threadID, actorID, err)
	}

	update := models.ThreadUpdate{GroupImage: groupImage}
	if groupName != nil {
		name := strings.TrimSpace(*groupName)
		update.GroupName = &name
	}
	if err := s.threads.UpdateThread(ctx, threadID, update); err != nil {
		return models.Thread{}, s.fail("update_thread", threadID, actorID, err)
	}
	thread, err := s.threads.GetThreadByID(ctx, threadID)
	if err != nil {
		return models.Thread{}, s.fail("update_thread", threadID, actorID, err)
	}
	return thread, nil
}

// DeleteThread removes the thread with its participants and messages.
func (s *Service) DeleteThread(ctx context.Context, actorID string, threadID string) error {
	if err := s.requireParticipant(ctx, threadID, actorID); err != nil {
		return s.fail("delete_thread", threadID, actorID, err)
	}
	if err := s.threads.DeleteThread(ctx, threadID); err != nil {
		return s.fail("delete_thread", threadID, actorID, err)
	}
	s.notifier.PublishThreadDeleted(threadID)
	log.Info("thread deleted", "thread_id", threadID, "user_id", actorID)
	return nil
}

// IsParticipant reports whether userID belongs to threadID.
func (s *Service) IsParticipant(ctx context.Context, threadID string, userID string) (bool, error) {
	return s.threads.IsParticipant(ctx, threadID, userID)
}

// requireParticipant returns NotFound for a missing thread and Unauthorized for outsiders.
func (s *Service) requireParticipant(ctx context.Context, threadID string, userID string) error {
	if threadID == "" {
		return apperr.Validation("thread_id is required")
	}
	if _, err := s.threads.GetThreadByID(ctx, threadID); err != nil {
		return err
	}
	member, err := s.threads.IsParticipant(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Unauthorized("not a thread participant")
	}
	return nil
}

func (s *Service) lookupNames(ctx context.Context, userIDs []string) (NameLookup, error) {
	if s.profiles == nil || len(userIDs) == 0 {
		return LookupFromProfiles(nil), nil
	}
	profiles, err := s.profiles.ResolveProfiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	return LookupFromProfiles(profiles), nil
}

// fail logs err with its context. Validation and authorization outcomes are
// expected and logged at debug level.
func (s *Service) fail(op string, threadID string, userID string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindUnauthorized, apperr.KindNotFound:
		log.Debug("conversation request rejected", "op", op, "thread_id", threadID, "user_id", userID, "err", err)
	default:
		log.Error("conversation operation failed", "op", op, "thread_id", threadID, "user_id", userID, "err", err)
	}
	return err
}

func summarize(thread models.Thread, participants []models.Participant, viewerID string, lookup NameLookup) models.ThreadSummary {
	return models.ThreadSummary{
		Thread:       thread,
		Title:        ComputeDisplayTitle(thread, participants, viewerID, lookup),
		Kind:         ClassifyThread(len(participants)),
		Participants: participants,
	}
}

func containsUser(participants []models.Participant, userID string) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func participantIDs(participants []models.Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// dedupe drops blanks, repeats and exclude while keeping first-seen order.
func dedupe(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = models.NormalizeUserID(id)
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
