package character

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"musegen_backend/internal/model"
)

// legacyCharacter carries the pre-gallery schema alongside the current one.
// Old records stored plain image URLs in generatedImages with no ids,
// timestamps or provenance.
type legacyCharacter struct {
	model.CharacterProfile
	GeneratedImages []string `json:"generatedImages,omitempty"`
}

// migrate upgrades one raw record to the current schema. Pure function:
// storage never leaks in here, so the upgrade path stays unit-testable.
func migrate(raw legacyCharacter, now time.Time) model.CharacterProfile {
	profile := raw.CharacterProfile

	if len(raw.GeneratedImages) > 0 && profile.SingleImages == nil {
		images := make([]model.GalleryImage, 0, len(raw.GeneratedImages))
		base := now.UnixMilli()
		for i, url := range raw.GeneratedImages {
			// Stagger synthetic timestamps so untimestamped legacy images
			// keep a stable, arbitrary order.
			images = append(images, model.GalleryImage{
				ID:        uuid.NewString(),
				URL:       url,
				CreatedAt: base - int64(i)*1000,
				Prompt:    "Migrated image",
			})
		}
		sortImagesNewestFirst(images)
		profile.SingleImages = images
	}

	if profile.SingleImages == nil {
		profile.SingleImages = []model.GalleryImage{}
	}
	if profile.Videos == nil {
		profile.Videos = []model.VideoAsset{}
	}
	if profile.Storyboards == nil {
		profile.Storyboards = []model.Storyboard{}
	}

	// Re-enforce the cap on load as well, cleaning up heavy data saved
	// before the cap existed.
	profile.SingleImages = pruneImages(profile.SingleImages)

	return profile
}

func sortImagesNewestFirst(images []model.GalleryImage) {
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CreatedAt > images[j].CreatedAt
	})
}

// pruneImages keeps only the newest MaxImagesPerCharacter images by
// creation time, newest first.
func pruneImages(images []model.GalleryImage) []model.GalleryImage {
	if len(images) <= MaxImagesPerCharacter {
		return images
	}
	sortImagesNewestFirst(images)
	return images[:MaxImagesPerCharacter]
}
