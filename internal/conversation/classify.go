package conversation

import (
	"strings"

	"lineup-chat/internal/models"
)

const (
	unknownTitle   = "Unknown"
	groupChatTitle = "Group Chat"
	maxTitleNames  = 3
)

// ClassifyThread derives the thread type from the live participant count.
// This is the authoritative classification; the stored thread_type is a cache of it.
func ClassifyThread(participantCount int) models.ThreadType {
	if participantCount <= 2 {
		return models.ThreadTypeDirect
	}
	return models.ThreadTypeGroup
}

// NameLookup resolves a user id to a display name.
type NameLookup func(userID string) (string, bool)

// LookupFromProfiles builds a NameLookup over already-fetched profiles.
func LookupFromProfiles(profiles []models.Profile) NameLookup {
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.UserID] = p.DisplayName
	}
	return func(userID string) (string, bool) {
		name, ok := names[userID]
		return name, ok && strings.TrimSpace(name) != ""
	}
}

// ComputeDisplayTitle returns the human-facing title of a thread for currentUserID.
// Two-party threads show the other participant and ignore group_name.
func ComputeDisplayTitle(thread models.Thread, participants []models.Participant, currentUserID string, lookup NameLookup) string {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}

	if len(participants) <= 2 {
		for _, p := range participants {
			if p.UserID == currentUserID {
				continue
			}
			if name, ok := lookup(p.UserID); ok {
				return name
			}
			return unknownTitle
		}
		return unknownTitle
	}

	if thread.GroupName != nil && strings.TrimSpace(*thread.GroupName) != "" {
		return *thread.GroupName
	}

	names := make([]string, 0, maxTitleNames)
	taken := 0
	for _, p := range participants {
		if p.UserID == currentUserID {
			continue
		}
		if taken == maxTitleNames {
			break
		}
		taken++
		if name, ok := lookup(p.UserID); ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return groupChatTitle
	}

	title := strings.Join(names, ", ")
	if len(participants) > maxTitleNames+1 {
		title += "..."
	}
	return title
}
