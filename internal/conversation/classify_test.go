package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lineup-chat/internal/models"
)

func TestClassifyThread(t *testing.T) {
	for n := 0; n <= 2; n++ {
		assert.Equal(t, models.ThreadTypeDirect, ClassifyThread(n), "count %d", n)
	}
	for n := 3; n <= 50; n++ {
		assert.Equal(t, models.ThreadTypeGroup, ClassifyThread(n), "count %d", n)
	}
}

func participantsOf(threadID string, ids ...string) []models.Participant {
	out := make([]models.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Participant{ThreadID: threadID, UserID: id, Role: models.RoleMember})
	}
	return out
}

func TestComputeDisplayTitle(t *testing.T) {
	lookup := LookupFromProfiles([]models.Profile{
		{UserID: "u1", DisplayName: "Ann"},
		{UserID: "u2", DisplayName: "Bo"},
		{UserID: "u3", DisplayName: "Cid"},
		{UserID: "u4", DisplayName: "Dee"},
		{UserID: "u5", DisplayName: "Eli"},
		{UserID: "u6", DisplayName: "Fay"},
	})
	named := "Weekend"
	blank := "   "

	tests := []struct {
		name         string
		groupName    *string
		participants []string
		viewer       string
		lookup       NameLookup
		want         string
	}{
		{name: "two party shows other", participants: []string{"u1", "u2"}, viewer: "u1", lookup: lookup, want: "Bo"},
		{name: "two party ignores group name", groupName: &named, participants: []string{"u1", "u2"}, viewer: "u2", lookup: lookup, want: "Ann"},
		{name: "two party unknown profile", participants: []string{"u1", "ghost"}, viewer: "u1", lookup: lookup, want: "Unknown"},
		{name: "only viewer", participants: []string{"u1"}, viewer: "u1", lookup: lookup, want: "Unknown"},
		{name: "group name wins", groupName: &named, participants: []string{"u1", "u2", "u3"}, viewer: "u1", lookup: lookup, want: "Weekend"},
		{name: "blank group name falls back", groupName: &blank, participants: []string{"u1", "u2", "u3"}, viewer: "u1", lookup: lookup, want: "Bo, Cid"},
		{name: "four participants no ellipsis", participants: []string{"u1", "u2", "u3", "u4"}, viewer: "u1", lookup: lookup, want: "Bo, Cid, Dee"},
		{name: "six participants truncated", participants: []string{"u6", "u1", "u2", "u3", "u4", "u5"}, viewer: "u6", lookup: lookup, want: "Ann, Bo, Cid..."},
		{name: "no names resolve", participants: []string{"u1", "x", "y"}, viewer: "u1", lookup: nil, want: "Group Chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := models.Thread{ID: "t1", GroupName: tt.groupName}
			got := ComputeDisplayTitle(thread, participantsOf("t1", tt.participants...), tt.viewer, tt.lookup)
			assert.Equal(t, tt.want, got)
		})
	}
}
