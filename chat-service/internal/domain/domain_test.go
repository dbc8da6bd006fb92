package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	req := require.New(t)

	tgt, err := ParseTarget(" u2 ", "")
	req.NoError(err)
	req.True(tgt.IsDirect())
	req.Equal("u2", tgt.ID())

	tgt, err = ParseTarget("", "g1")
	req.NoError(err)
	req.True(tgt.IsGroup())
	req.Equal(MessageKindGroup, tgt.MessageKind())

	tgt, err = ParseTarget("u2", "g1")
	req.NoError(err)
	req.True(tgt.IsDirect())
	req.Equal("u2", tgt.ID())

	_, err = ParseTarget("  ", "")
	req.ErrorIs(err, ErrValidation)
}

func TestTarget_ZeroValueInvalid(t *testing.T) {
	require.ErrorIs(t, Target{}.Validate(), ErrValidation)
}

func TestDirectPairKey_Symmetric(t *testing.T) {
	require.Equal(t, DirectPairKey("b", "a"), DirectPairKey("a", "b"))
	require.Equal(t, "a:b", DirectPairKey("b", "a"))
	require.Equal(t, "a:b", DirectTarget("b").ConversationID("a"))
	require.Equal(t, "g1", GroupTarget("g1").ConversationID("a"))
}

func TestNewMessage(t *testing.T) {
	req := require.New(t)

	msg, err := NewMessage("u1", DirectTarget("u2"), "  hi  ")
	req.NoError(err)
	req.Equal("hi", msg.Content)
	req.Equal(MessageKindDirect, msg.Kind)
	req.Equal("u2", msg.RecipientID)
	req.Empty(msg.GroupID)
	req.Equal("u1:u2", msg.ConversationID)

	msg, err = NewMessage("u1", GroupTarget("g1"), "yo")
	req.NoError(err)
	req.Equal(MessageKindGroup, msg.Kind)
	req.Equal("g1", msg.GroupID)
	req.Empty(msg.RecipientID)
}

func TestNewMessage_RejectsBlankContent(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := NewMessage("u1", DirectTarget("u2"), content)
		require.ErrorIs(t, err, ErrValidation)
	}
}

func TestNewGroup_DeduplicatesAndIncludesCreator(t *testing.T) {
	req := require.New(t)

	g, err := NewGroup(" team ", "A", []string{"A", "A", "B"})
	req.NoError(err)
	req.Equal("team", g.Name)
	req.Equal([]string{"A", "B"}, g.MemberIDs)
	req.True(g.HasMember("A"))
	req.True(g.IsCreator("A"))
}

func TestNewGroup_Bounds(t *testing.T) {
	req := require.New(t)

	_, err := NewGroup("solo", "A", []string{"A"})
	req.ErrorIs(err, ErrValidation)

	many := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		many = append(many, fmt.Sprintf("m%d", i))
	}
	_, err = NewGroup("big", "A", many)
	req.ErrorIs(err, ErrValidation)

	g, err := NewGroup("full", "A", many[:49])
	req.NoError(err)
	req.Len(g.MemberIDs, 50)

	_, err = NewGroup("", "A", []string{"B"})
	req.ErrorIs(err, ErrValidation)
	_, err = NewGroup(strings.Repeat("x", 101), "A", []string{"B"})
	req.ErrorIs(err, ErrValidation)
}

func TestGroup_MemberEdits(t *testing.T) {
	req := require.New(t)
	g := &Group{CreatorID: "A", MemberIDs: []string{"A", "B"}}

	members, err := g.WithMembersAdded([]string{"B", "C"})
	req.NoError(err)
	req.Equal([]string{"A", "B", "C"}, members)

	_, err = g.WithMemberRemoved("B")
	req.ErrorIs(err, ErrValidation)

	_, err = g.WithMemberRemoved("Z")
	req.ErrorIs(err, ErrNotFound)

	g.MemberIDs = []string{"A", "B", "C"}
	members, err = g.WithMemberRemoved("C")
	req.NoError(err)
	req.Equal([]string{"A", "B"}, members)
}

func TestGroup_AddBeyondMax(t *testing.T) {
	g := &Group{MemberIDs: make([]string, 0, 50)}
	for i := 0; i < 50; i++ {
		g.MemberIDs = append(g.MemberIDs, fmt.Sprintf("m%d", i))
	}
	_, err := g.WithMembersAdded([]string{"extra"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReadState_DefaultsToNeverRead(t *testing.T) {
	rs := ReadState{}
	require.Equal(t, NeverRead, rs.LastRead("x"))
	require.Equal(t, int64(0), rs.LastRead("x").Unix())
}

func TestErrorClassification(t *testing.T) {
	req := require.New(t)

	cause := errors.New("db down")
	err := NewPersistenceError("failed to save message", cause)
	req.ErrorIs(err, ErrPersistence)
	req.ErrorIs(err, cause)
	req.Equal("internal server error", PublicMessage(err))
	req.Equal(ErrCodeInternalError, ErrorCode(err))

	wrapped := fmt.Errorf("submit: %w", NewNotFoundError("group not found"))
	req.Equal(ErrCodeNotFound, ErrorCode(wrapped))
	req.Equal("group not found", PublicMessage(wrapped))

	evt := ErrorEventFor(NewValidationError("message content cannot be empty"))
	req.Equal(EventError, evt.Type)
	req.Equal(ErrCodeBadRequest, evt.Code)

	req.Equal(ErrCodeForbidden, ErrorCode(NewForbiddenError("x")))
	req.Equal(ErrCodeUnauthorized, ErrorCode(NewAuthError("x", nil)))
	req.Equal(ErrCodeConflict, ErrorCode(NewConflictError("x", nil)))
	req.Equal(ErrCodeInternalError, ErrorCode(errors.New("plain")))
}

func TestGroupModel_ToDomainKeepsMemberOrder(t *testing.T) {
	m := &GroupModel{
		ID: "g1",
		Members: []GroupMemberModel{
			{GroupID: "g1", UserID: "C", Position: 2},
			{GroupID: "g1", UserID: "A", Position: 0},
			{GroupID: "g1", UserID: "B", Position: 1},
		},
	}
	require.Equal(t, []string{"A", "B", "C"}, m.ToDomain().MemberIDs)
}

func TestWireEvents_CamelCaseKeys(t *testing.T) {
	req := require.New(t)

	// Given: inbound frames as a browser client sends them
	var direct SendDirectMessageEvent
	req.NoError(json.Unmarshal([]byte(`{"type":"send_direct_message","recipientId":"u2","content":"hi"}`), &direct))
	req.Equal("u2", direct.RecipientID)

	var group SendGroupMessageEvent
	req.NoError(json.Unmarshal([]byte(`{"type":"send_group_message","groupId":"g1","content":"hi"}`), &group))
	req.Equal("g1", group.GroupID)

	var read MarkAsReadEvent
	req.NoError(json.Unmarshal([]byte(`{"type":"mark_as_read","conversationId":"u2"}`), &read))
	req.Equal("u2", read.ConversationID)

	// When: outbound events are encoded
	data, err := json.Marshal(NewUserStatusChangedEvent("u1", true, time.Unix(0, 0).UTC()))
	req.NoError(err)
	var status map[string]any
	req.NoError(json.Unmarshal(data, &status))

	// Then: the status event carries identity and online
	req.Equal("u1", status["identity"])
	req.Equal(true, status["online"])
	req.NotContains(status, "user_id")

	data, err = json.Marshal(&SignalOutEvent{Type: EventTypingStart, UserID: "u1", ConversationID: "g1"})
	req.NoError(err)
	req.JSONEq(`{"type":"typing_start","userId":"u1","conversationId":"g1"}`, string(data))
}
