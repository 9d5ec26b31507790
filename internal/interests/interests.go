// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package interests loads the user subscription file and derives from it
// the set of tracked entities for a run.
//
// The interests file is a single JSON document:
//
//	{
//	  "users": [
//	    {
//	      "name": "Ada", "nickname": "ada", "email": "ada@example.com",
//	      "locations": ["Berlin"],
//	      "venues":    [{"name": "Tresor", "tag": "tresor"}],
//	      "artists":   [{"name": "Rrose",  "tag": "rrose"}],
//	      "promoters": [{"name": "Ostgut", "tag": "ostgut"}]
//	    }
//	  ]
//	}
//
// Both subscriptions and the polling workload come from this one file:
// every interest any user holds becomes a tracked entity, deduplicated
// across users in first-seen order.
package interests

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/gigwatch/gigwatch/internal/models"
)

// file is the on-disk document shape.
type file struct {
	Users []models.User `json:"users"`
}

// Load reads and validates the interests file, returning the users and
// the deduplicated tracked entities their subscriptions imply.
func Load(path string) ([]models.User, []models.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read interests file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an interests document.
func Parse(data []byte) ([]models.User, []models.Entity, error) {
	var doc file
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode interests file: %w", err)
	}
	if len(doc.Users) == 0 {
		return nil, nil, fmt.Errorf("interests file has no users")
	}
	for i, user := range doc.Users {
		if user.Email == "" {
			return nil, nil, fmt.Errorf("user %d (%q) has no email", i, user.Name)
		}
		if user.Name == "" {
			return nil, nil, fmt.Errorf("user %d (%s) has no name", i, user.Email)
		}
	}
	return doc.Users, TrackedEntities(doc.Users), nil
}

// TrackedEntities collapses all users' subscriptions into the entity list
// to poll, keeping the first occurrence of each (kind, tag) pair so the
// polling order follows the file.
func TrackedEntities(users []models.User) []models.Entity {
	seen := make(map[string]bool)
	var entities []models.Entity

	add := func(kind models.EntityKind, interests []models.Interest) {
		for _, interest := range interests {
			if interest.Tag == "" {
				continue
			}
			key := string(kind) + ":" + interest.Tag
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, models.Entity{
				Name: interest.Name,
				Tag:  interest.Tag,
				Kind: kind,
			})
		}
	}

	for _, user := range users {
		add(models.KindVenue, user.Venues)
		add(models.KindArtist, user.Artists)
		add(models.KindPromoter, user.Promoters)
	}
	return entities
}
