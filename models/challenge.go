package models

import "time"

// Challenge is one daily competition round, identified by the opaque
// token Geoguessr assigns to it. Immutable after insert; "today's
// challenge" is the row with the greatest RetrievedAt.
type Challenge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Token       string    `gorm:"uniqueIndex;not null" json:"token"`
	RetrievedAt time.Time `gorm:"index;not null" json:"retrieved_at"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}
