package cache

import (
	"fmt"
	"time"
)

const (
	QuestionKeyPrefix = "question:%d"
	TagsKey           = "tags:all"
	BlacklistPrefix   = "blacklist:%s"
)

const (
	QuestionTTL = 2 * time.Minute
	TagsTTL     = time.Minute
)

// QuestionKey caches a question detail (question plus ordered answers).
func QuestionKey(questionID uint) string {
	return fmt.Sprintf(QuestionKeyPrefix, questionID)
}

// BlacklistKey marks a revoked token id.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistPrefix, jti)
}
