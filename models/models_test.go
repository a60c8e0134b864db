package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration) Message {
	return Message{ID: id, ConversationID: "c1", Content: id, CreatedAt: base.Add(offset)}
}

func TestConversation_DisplayName(t *testing.T) {
	direct := Conversation{
		ID:           "c1",
		Participants: []User{{ID: "me", Name: "Me"}, {ID: "u2", Name: "Ayşe"}},
	}
	assert.Equal(t, "Ayşe", direct.DisplayName("me"))
	require.NotNil(t, direct.OtherParticipant("me"))
	assert.Equal(t, "u2", direct.OtherParticipant("me").ID)

	group := Conversation{ID: "g1", IsGroup: true, Name: "Volunteers", Participants: direct.Participants}
	assert.Equal(t, "Volunteers", group.DisplayName("me"))
	assert.Nil(t, group.OtherParticipant("me"))
}

func TestConversation_CloneIsDeep(t *testing.T) {
	orig := Conversation{
		ID:           "c1",
		Participants: []User{{ID: "u1"}},
		LastMessage:  &LastMessage{Content: "hi"},
	}
	cp := orig.Clone()
	cp.Participants[0].IsOnline = true
	cp.LastMessage.Content = "changed"

	assert.False(t, orig.Participants[0].IsOnline)
	assert.Equal(t, "hi", orig.LastMessage.Content)
}

func TestCreateConversationRequest_Validate(t *testing.T) {
	t.Run("dedups and trims participants", func(t *testing.T) {
		req := CreateConversationRequest{Name: "ignored", Participants: []string{" u1", "u1", "", "u2 "}}
		require.NoError(t, req.Validate())
		assert.Equal(t, []string{"u1", "u2"}, req.Participants)
		assert.Empty(t, req.Name)
	})

	t.Run("requires a participant", func(t *testing.T) {
		req := CreateConversationRequest{Participants: []string{"  "}}
		assert.Error(t, req.Validate())
	})

	t.Run("group requires a name", func(t *testing.T) {
		req := CreateConversationRequest{IsGroup: true, Participants: []string{"u1", "u2"}}
		assert.Error(t, req.Validate())

		req.Name = " Board "
		require.NoError(t, req.Validate())
		assert.Equal(t, "Board", req.Name)
	})
}

func TestMessage_AddReadByIsIdempotent(t *testing.T) {
	m := msg("m1", 0)

	assert.True(t, m.AddReadBy("u2", base))
	assert.False(t, m.AddReadBy("u2", base.Add(time.Minute)))
	assert.False(t, m.AddReadBy("", base))

	require.Len(t, m.ReadBy, 1)
	assert.Equal(t, base, m.ReadBy[0].ReadAt)
	assert.True(t, m.HasReadBy("u2"))
	assert.False(t, m.HasReadBy("u3"))
}

func TestMergeByID(t *testing.T) {
	existing := []Message{msg("m3", 3*time.Minute), msg("m4", 4*time.Minute)}
	older := []Message{msg("m1", time.Minute), msg("m2", 2*time.Minute), msg("m3", 3*time.Minute)}
	older[2].Content = "edited"

	merged := MergeByID(existing, older)

	ids := make([]string, 0, len(merged))
	for _, m := range merged {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids)
	assert.Equal(t, "edited", merged[2].Content, "last write wins")

	// Aynı sayfayı tekrar birleştirmek sonucu değiştirmez.
	assert.Equal(t, merged, MergeByID(merged, older))
}

func TestOldestCreatedAt(t *testing.T) {
	_, ok := OldestCreatedAt(nil)
	assert.False(t, ok)

	oldest, ok := OldestCreatedAt([]Message{msg("b", time.Hour), msg("a", -time.Hour), msg("c", 0)})
	require.True(t, ok)
	assert.Equal(t, base.Add(-time.Hour), oldest)
}

func TestNewCacheEntry_KeepsOnlyWindow(t *testing.T) {
	now := base
	window := 5 * 24 * time.Hour
	messages := []Message{
		msg("old", -6*24*time.Hour),
		msg("edge", -window),
		msg("recent", -4*24*time.Hour),
		msg("new", -time.Minute),
	}

	entry := NewCacheEntry(messages, now, window, 0)

	require.Len(t, entry.Messages, 2)
	assert.Equal(t, "recent", entry.Messages[0].ID)
	assert.Equal(t, "new", entry.Messages[1].ID)
	assert.Equal(t, now.UnixMilli(), entry.Timestamp)
}

func TestNewCacheEntry_CapsToNewest(t *testing.T) {
	messages := []Message{msg("m3", -1*time.Minute), msg("m1", -3*time.Minute), msg("m2", -2*time.Minute)}

	entry := NewCacheEntry(messages, base, time.Hour, 2)

	require.Len(t, entry.Messages, 2)
	assert.Equal(t, "m2", entry.Messages[0].ID)
	assert.Equal(t, "m3", entry.Messages[1].ID)
}

func TestCacheEntry_IsFresh(t *testing.T) {
	entry := CacheEntry{Timestamp: base.UnixMilli()}

	assert.True(t, entry.IsFresh(base.Add(59*time.Minute), time.Hour))
	assert.False(t, entry.IsFresh(base.Add(time.Hour), time.Hour))
	assert.False(t, entry.IsFresh(base.Add(61*time.Minute), time.Hour))
}

func TestMessage_WireFormat(t *testing.T) {
	raw := `{"_id":"m1","conversationId":"c1","sender":{"_id":"u1","name":"Ali","isOnline":false},
		"content":"selam","createdAt":"2026-03-10T12:00:00.000Z","readBy":[{"user":"u2","readAt":"2026-03-10T12:01:00Z"}]}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "u1", m.Sender.ID)
	assert.Equal(t, base, m.CreatedAt)
	assert.True(t, m.HasReadBy("u2"))
}

func TestMessage_ReadByAll(t *testing.T) {
	group := &Conversation{ID: "g1", IsGroup: true, Participants: []User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}}
	solo := &Conversation{ID: "c0", Participants: []User{{ID: "u1"}}}

	receipts := func(users ...string) []ReadReceipt {
		out := []ReadReceipt{}
		for _, u := range users {
			out = append(out, ReadReceipt{User: u, ReadAt: base})
		}
		return out
	}

	cases := []struct {
		name   string
		conv   *Conversation
		readBy []ReadReceipt
		want   bool
	}{
		{"no conversation", nil, receipts("u2", "u3"), false},
		{"readBy missing", group, nil, false},
		{"nobody read", group, receipts(), false},
		{"some read", group, receipts("u2"), false},
		{"all others read", group, receipts("u3", "u2"), true},
		{"sender entry is not required", group, receipts("u1", "u2", "u3"), true},
		{"no other participants", solo, receipts(), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := msg("m1", 0)
			m.Sender = User{ID: "u1"}
			m.ReadBy = tc.readBy
			assert.Equal(t, tc.want, m.ReadByAll(tc.conv))
		})
	}
}
