package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Group size bounds, inclusive.
const (
	MinGroupMembers = 2
	MaxGroupMembers = 50
	MaxGroupNameLen = 100
)

// Group is a named set of members. The creator is always a member.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	MemberIDs []string  `json:"member_ids"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGroup validates the name and builds the member set from the creator
// plus memberIDs, de-duplicated in first-seen order.
func NewGroup(name, creatorID string, memberIDs []string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("group name is required")
	}
	if len([]rune(name)) > MaxGroupNameLen {
		return nil, NewValidationError("group name must not exceed 100 characters")
	}

	members := normalizeMembers(append([]string{creatorID}, memberIDs...))
	if err := validateMemberCount(len(members)); err != nil {
		return nil, err
	}

	return &Group{
		Name:      name,
		CreatorID: creatorID,
		MemberIDs: members,
	}, nil
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	return lo.Contains(g.MemberIDs, userID)
}

// IsCreator reports whether userID created the group.
func (g *Group) IsCreator(userID string) bool {
	return g.CreatorID == userID
}

// WithMembersAdded returns the member set after adding ids, skipping ones
// already present, or a validation error if the result exceeds the maximum.
func (g *Group) WithMembersAdded(ids []string) ([]string, error) {
	members := normalizeMembers(append(append([]string{}, g.MemberIDs...), ids...))
	if len(members) > MaxGroupMembers {
		return nil, NewValidationError("group cannot have more than 50 members")
	}
	return members, nil
}

// WithMemberRemoved returns the member set after removing id, or a
// validation error if fewer than the minimum would remain.
func (g *Group) WithMemberRemoved(id string) ([]string, error) {
	if !g.HasMember(id) {
		return nil, NewNotFoundError("user is not a member of the group")
	}
	members := lo.Without(g.MemberIDs, id)
	if len(members) < MinGroupMembers {
		return nil, NewValidationError("group must have at least 2 members")
	}
	return members, nil
}

func normalizeMembers(ids []string) []string {
	trimmed := lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != ""
	})
	return lo.Uniq(trimmed)
}

func validateMemberCount(n int) error {
	if n < MinGroupMembers {
		return NewValidationError("group must have at least 2 members")
	}
	if n > MaxGroupMembers {
		return NewValidationError("group cannot have more than 50 members")
	}
	return nil
}

// GroupModel is the GORM model for groups table.
type GroupModel struct {
	ID        string             `gorm:"type:varchar(36);primaryKey"`
	Name      string             `gorm:"type:varchar(100);not null"`
	CreatorID string             `gorm:"type:varchar(36);not null;index"`
	Version   int                `gorm:"not null;default:1"`
	Members   []GroupMemberModel `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time          `gorm:"autoCreateTime"`
	UpdatedAt time.Time          `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GroupModel.
func (GroupModel) TableName() string {
	return "groups"
}

// GroupMemberModel is one membership row.
type GroupMemberModel struct {
	GroupID   string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey;index"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GroupMemberModel.
func (GroupMemberModel) TableName() string {
	return "group_members"
}

// ToDomain converts GroupModel to domain Group. Members keep insertion order.
func (m *GroupModel) ToDomain() *Group {
	members := make([]GroupMemberModel, len(m.Members))
	copy(members, m.Members)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Position < members[j].Position })

	return &Group{
		ID:        m.ID,
		Name:      m.Name,
		CreatorID: m.CreatorID,
		MemberIDs: lo.Map(members, func(gm GroupMemberModel, _ int) string { return gm.UserID }),
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// GroupToModel converts domain Group to GroupModel.
func GroupToModel(g *Group) *GroupModel {
	return &GroupModel{
		ID:        g.ID,
		Name:      g.Name,
		CreatorID: g.CreatorID,
		Version:   g.Version,
		Members:   MembersToModels(g.ID, g.MemberIDs),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// MembersToModels builds membership rows for groupID in the given order.
func MembersToModels(groupID string, memberIDs []string) []GroupMemberModel {
	return lo.Map(memberIDs, func(id string, i int) GroupMemberModel {
		return GroupMemberModel{GroupID: groupID, UserID: id, Position: i}
	})
}

// CreateGroupRequest represents a group creation request.
type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required"`
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

// AddMembersRequest represents a membership addition request.
type AddMembersRequest struct {
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	*Group
	UnreadCount *int `json:"unread_count,omitempty"`
}
