package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaxTags is the maximum number of tags a question may carry.
const MaxTags = 5

// Tags is a list of normalized tag names stored as a JSON text column.
type Tags []string

// GormDataType pins the column type regardless of dialect.
func (Tags) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("tags: unsupported source type %T", src)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = out
	return nil
}

// Question is a user-submitted question. Votes and AnswersCount are
// denormalized counters maintained by the vote ledger and answer creation.
type Question struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:300;not null" json:"title"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Tags         Tags      `json:"tags"`
	AuthorID     uint      `gorm:"index;not null" json:"authorId"`
	Author       *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Votes        int       `gorm:"not null;default:0" json:"votes"`
	AnswersCount int       `gorm:"not null;default:0" json:"answersCount"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// SearchText is the lowercased title, description and tags joined by
	// SearchSeparator. Listing search is a substring match against it.
	SearchText string `gorm:"type:text;not null;default:''" json:"-"`
	// UserVote is the viewer's own vote, set per request and never stored.
	UserVote *int `gorm:"-" json:"userVote,omitempty"`
}

// SearchSeparator joins the fields of Question.SearchText. A search term
// never contains it, so a match cannot span two fields.
const SearchSeparator = "\x1f"

func (q *Question) searchText() string {
	parts := make([]string, 0, 2+len(q.Tags))
	parts = append(parts, q.Title, q.Description)
	parts = append(parts, q.Tags...)
	return strings.ToLower(strings.Join(parts, SearchSeparator))
}

// BuildSearchText recomputes SearchText from the searchable fields.
func (q *Question) BuildSearchText() string {
	q.SearchText = q.searchText()
	return q.SearchText
}

// BeforeSave keeps SearchText in step with the row being written.
func (q *Question) BeforeSave(_ *gorm.DB) error {
	q.BuildSearchText()
	return nil
}

// NormalizeSearch lowercases a search term and drops separator runes.
// An empty result means "no filter".
func NormalizeSearch(term string) string {
	term = strings.ReplaceAll(term, SearchSeparator, "")
	return strings.ToLower(strings.TrimSpace(term))
}

// MatchesSearch reports whether term, already passed through
// NormalizeSearch, occurs in the title, description or any single tag.
func (q *Question) MatchesSearch(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(q.searchText(), term)
}

// QuestionPage is one page of a question listing.
type QuestionPage struct {
	Questions []*Question `json:"questions"`
	Total     int64       `json:"total"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
}

// QuestionDetail is a question together with its ordered answers.
type QuestionDetail struct {
	Question *Question `json:"question"`
	Answers  []*Answer `json:"answers"`
}

// TagCount is a tag and the number of questions carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
