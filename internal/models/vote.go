package models

import "time"

// TargetType identifies what kind of entity a vote is cast on.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
)

// Valid reports whether t names a votable entity.
func (t TargetType) Valid() bool {
	return t == TargetQuestion || t == TargetAnswer
}

// Vote is a ledger entry: one standing vote per (user, target).
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1" json:"userId"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:2;index:idx_votes_target,priority:1" json:"targetId"`
	TargetType TargetType `gorm:"size:16;not null;uniqueIndex:idx_votes_user_target,priority:3;index:idx_votes_target,priority:2" json:"targetType"`
	Value      int        `gorm:"not null" json:"value"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// VoteDelta returns the tally change implied by casting value when previous
// is the user's standing vote (0 for none), and the resulting standing vote.
//
//	none     -> value : insert, delta = value
//	same     -> 0     : toggle off, delta = -value
//	opposite -> value : flip, delta = value - previous
func VoteDelta(previous, value int) (delta, standing int) {
	switch previous {
	case 0:
		return value, value
	case value:
		return -value, 0
	default:
		return value - previous, value
	}
}
