package models

import "time"

// Answer is a reply to a question. At most one answer per question is accepted.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"index;not null" json:"questionId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	AuthorID   uint      `gorm:"index;not null" json:"authorId"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Votes      int       `gorm:"not null;default:0" json:"votes"`
	IsAccepted bool      `gorm:"not null;default:false" json:"isAccepted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// UserVote is the viewer's own vote, set per request and never stored.
	UserVote *int `gorm:"-" json:"userVote,omitempty"`
}
