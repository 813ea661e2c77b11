package models

import "time"

// Participant is a Geoguessr identity eligible to appear in daily
// challenge snapshots. Rows are created by the roster sync (never from
// result data) and are never deleted. DiscordID is the only mutable
// field and is set at most once, from NULL to a value.
type Participant struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	GeoID     string    `gorm:"uniqueIndex;not null" json:"geo_id"`
	GeoName   string    `gorm:"index;not null" json:"geo_name"`
	DiscordID *string   `gorm:"index" json:"discord_id,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Registered reports whether the participant has a linked Discord account.
func (p *Participant) Registered() bool {
	return p.DiscordID != nil && *p.DiscordID != ""
}
