package domain

import (
	"sort"
	"strings"
)

// TargetKind says which shape a Target has.
type TargetKind int

const (
	TargetDirect TargetKind = iota + 1
	TargetGroup
)

// Target is where a message or signal is addressed: exactly one recipient
// identity or exactly one group.
type Target struct {
	kind TargetKind
	id   string
}

// DirectTarget addresses a single recipient identity.
func DirectTarget(recipientID string) Target {
	return Target{kind: TargetDirect, id: recipientID}
}

// GroupTarget addresses every member of a group.
func GroupTarget(groupID string) Target {
	return Target{kind: TargetGroup, id: groupID}
}

// ParseTarget builds a Target from the loose recipient/group pair carried by
// inbound signal payloads. A recipient takes precedence over a group.
func ParseTarget(recipientID, groupID string) (Target, error) {
	recipientID = strings.TrimSpace(recipientID)
	groupID = strings.TrimSpace(groupID)
	switch {
	case recipientID != "":
		return DirectTarget(recipientID), nil
	case groupID != "":
		return GroupTarget(groupID), nil
	default:
		return Target{}, NewValidationError("recipientId or groupId is required")
	}
}

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) ID() string       { return t.id }
func (t Target) IsDirect() bool   { return t.kind == TargetDirect }
func (t Target) IsGroup() bool    { return t.kind == TargetGroup }

// Validate reports whether the target was built through a constructor with a
// non-empty id.
func (t Target) Validate() error {
	if t.kind != TargetDirect && t.kind != TargetGroup {
		return NewValidationError("target is required")
	}
	if strings.TrimSpace(t.id) == "" {
		return NewValidationError("target id is required")
	}
	return nil
}

// MessageKind derives the stored message kind from the target shape.
func (t Target) MessageKind() MessageKind {
	if t.kind == TargetGroup {
		return MessageKindGroup
	}
	return MessageKindDirect
}

// ConversationID returns the storage key for messages between sender and
// this target: the canonical pair for direct targets, the group id otherwise.
func (t Target) ConversationID(senderID string) string {
	if t.kind == TargetGroup {
		return t.id
	}
	return DirectPairKey(senderID, t.id)
}

// DirectPairKey canonicalizes an unordered pair of identities so both
// participants address the same conversation.
func DirectPairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}
