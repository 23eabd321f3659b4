package character

import (
	"encoding/json"
	"log"
	"time"

	"musegen_backend/internal/model"
	"musegen_backend/pkg/store"
)

const (
	// MaxImagesPerCharacter bounds the gallery per character. Kept small
	// because images are inline data blobs and dominate storage usage.
	MaxImagesPerCharacter = 5

	// MaxCharactersPerAccount bounds the collection. Enforced before
	// creation by the HTTP layer, not by Upsert.
	MaxCharactersPerAccount = 10

	charactersKeyPrefix = "characters-"
)

// Repository owns the load/migrate/save cycle for a user's character
// collection. Corrupted or mis-shaped persisted data degrades to an empty
// collection instead of failing: availability over alerting.
type Repository struct {
	store *store.Store
	now   func() time.Time
}

func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s, now: time.Now}
}

func CollectionKey(username string) string {
	return charactersKeyPrefix + username
}

// Load reads, parses and migrates the user's collection. It never returns
// an error: a missing blob yields an empty collection, and corrupt data is
// logged and discarded rather than crashing the caller.
func (r *Repository) Load(username string) []model.CharacterProfile {
	raw, found, err := r.store.Get(CollectionKey(username))
	if err != nil {
		log.Printf("Could not read characters for %s: %v", username, err)
		return []model.CharacterProfile{}
	}
	if !found {
		return []model.CharacterProfile{}
	}

	var records []legacyCharacter
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Printf("Characters for %s are corrupted, resetting: %v", username, err)
		return []model.CharacterProfile{}
	}

	now := r.now()
	characters := make([]model.CharacterProfile, 0, len(records))
	for _, record := range records {
		characters = append(characters, migrate(record, now))
	}
	return characters
}

// Save serializes the whole collection as one blob. A capacity failure is
// reported as false and a user warning; the in-memory collection is then
// ahead of what is durably saved until the user frees space.
func (r *Repository) Save(username string, characters []model.CharacterProfile) bool {
	if characters == nil {
		characters = []model.CharacterProfile{}
	}
	return r.store.SafeWrite(CollectionKey(username), characters)
}

// Upsert replaces the profile matching by id, or appends it. The image cap
// is enforced before insertion by pruning the oldest entries.
func Upsert(characters []model.CharacterProfile, profile model.CharacterProfile) []model.CharacterProfile {
	profile.SingleImages = pruneImages(profile.SingleImages)

	for i, existing := range characters {
		if existing.ID == profile.ID {
			updated := make([]model.CharacterProfile, len(characters))
			copy(updated, characters)
			updated[i] = profile
			return updated
		}
	}
	return append(characters, profile)
}

// Delete removes the profile with the given id. Absent ids are a no-op.
func Delete(characters []model.CharacterProfile, id string) []model.CharacterProfile {
	updated := make([]model.CharacterProfile, 0, len(characters))
	for _, c := range characters {
		if c.ID != id {
			updated = append(updated, c)
		}
	}
	return updated
}

// Find returns the profile with the given id, if present.
func Find(characters []model.CharacterProfile, id string) (model.CharacterProfile, bool) {
	for _, c := range characters {
		if c.ID == id {
			return c, true
		}
	}
	return model.CharacterProfile{}, false
}
