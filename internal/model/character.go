package model

// Gender Types
type Gender string

const (
	GenderFemale Gender = "Female"
	GenderMale   Gender = "Male"
)

// Art Styles
type ArtStyle string

const (
	ArtStyleRealistic ArtStyle = "Realistic"
)

// GalleryImage is a single generated image. URL is a self-contained data
// blob reference (data URL), which is why image collections are the main
// source of storage pressure. Timestamps are unix milliseconds so legacy
// records round-trip unchanged.
type GalleryImage struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"createdAt"`
	Prompt    string `json:"prompt"`
}

type WardrobeItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"imageUrl"`
	MasterPrompt string `json:"masterPrompt"`
}

type Lookbook struct {
	ID        string         `json:"id"`
	Theme     string         `json:"theme"`
	Prompt    string         `json:"prompt"`
	Images    []GalleryImage `json:"images"`
	CreatedAt int64          `json:"createdAt"`
}

type VideoAsset struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"createdAt"`
	Prompt    string `json:"prompt"`
}

type StoryboardScene struct {
	ID          string `json:"id"`
	SceneNumber int    `json:"sceneNumber"`
	Description string `json:"description"`
	CameraAngle string `json:"cameraAngle"`
	Setting     string `json:"setting"`
	Action      string `json:"action"`
	Outfit      string `json:"outfit,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type Storyboard struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Category    string            `json:"category"`
	Scenes      []StoryboardScene `json:"scenes"`
	CreatedAt   int64             `json:"createdAt"`
	CharacterID string            `json:"characterId"`
}

// CharacterProfile is one virtual companion. The whole per-user collection
// is serialized as a single blob; descriptive attributes are inert data
// passed through to the generation service.
type CharacterProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`

	Gender          Gender   `json:"gender"`
	Style           ArtStyle `json:"style"`
	Ethnicity       string   `json:"ethnicity"`
	CustomEthnicity string   `json:"customEthnicity,omitempty"`
	SkinTone        string   `json:"skinTone"`
	EyeColor        string   `json:"eyeColor"`
	HairColor       string   `json:"hairColor"`
	HairStyle       string   `json:"hairStyle"`
	BodyType        string   `json:"bodyType"`

	Personality       string   `json:"personality"`
	Occupation        string   `json:"occupation"`
	Relationship      string   `json:"relationship"`
	Hobby             string   `json:"hobby"`
	PublicDescription string   `json:"publicDescription,omitempty"`
	Greeting          string   `json:"greeting,omitempty"`
	Scenario          string   `json:"scenario,omitempty"`
	Storyline         string   `json:"storyline,omitempty"`
	Tags              []string `json:"tags,omitempty"`

	ReferenceImage string `json:"referenceImage,omitempty"` // base64 data URL

	SingleImages []GalleryImage `json:"singleImages"` // capped, newest-first for display
	Lookbooks    []Lookbook     `json:"lookbooks,omitempty"`
	Wardrobe     []WardrobeItem `json:"wardrobe,omitempty"`
	Videos       []VideoAsset   `json:"videos"`
	Storyboards  []Storyboard   `json:"storyboards"`
}
