package models

import (
	"time"

	"github.com/lib/pq"
)

// Room describes a teachable space supplied by the surrounding system.
type Room struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Capacity  int            `db:"capacity" json:"capacity"`
	Type      string         `db:"type" json:"type"`
	Equipment pq.StringArray `db:"equipment" json:"equipment"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// HasEquipment reports whether the room carries every required item.
func (r Room) HasEquipment(required []string) bool {
	if len(required) == 0 {
		return true
	}
	available := make(map[string]struct{}, len(r.Equipment))
	for _, item := range r.Equipment {
		available[item] = struct{}{}
	}
	for _, item := range required {
		if _, ok := available[item]; !ok {
			return false
		}
	}
	return true
}
