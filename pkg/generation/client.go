package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"musegen_backend/internal/model"
)

// ErrNoMediaReturned is surfaced when a generation call succeeds at the
// transport level but yields no usable payload (typically a safety block).
var ErrNoMediaReturned = errors.New("generation: no media payload returned")

// ImageParams are the named creative parameters for an image request.
type ImageParams struct {
	Makeup      string `json:"makeup"`
	Outfit      string `json:"outfit"`
	Background  string `json:"background"`
	Pose        string `json:"pose"`
	CameraAngle string `json:"camera_angle"`
	Quantity    int    `json:"quantity"`
}

// ChatMessage is one prior turn of a roleplay conversation.
type ChatMessage struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// ChatReply is a free-text persona reply, optionally carrying an embedded
// image-generation directive and reply suggestions for the user.
type ChatReply struct {
	Text        string   `json:"response"`
	ImagePrompt string   `json:"imagePrompt,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Service is the external generation collaborator. Every call is a single
// attempt with no retry; failures are surfaced to the user who may retry
// the action manually.
type Service interface {
	GenerateCharacterImages(ctx context.Context, profile model.CharacterProfile, params ImageParams) ([]model.GalleryImage, error)
	Chat(ctx context.Context, profile model.CharacterProfile, history []ChatMessage, message string) (*ChatReply, error)
	GenerateStoryline(ctx context.Context, profile model.CharacterProfile) (string, error)
}

type Client struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{
		client:     client,
		textModel:  "gemini-2.0-flash",
		imageModel: "gemini-2.0-flash-exp-image-generation",
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateCharacterImages requests params.Quantity images for the profile
// and returns them as inline data URLs.
func (c *Client) GenerateCharacterImages(ctx context.Context, profile model.CharacterProfile, params ImageParams) ([]model.GalleryImage, error) {
	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}

	gm := c.client.GenerativeModel(c.imageModel)
	prompt := buildImagePrompt(profile, params)

	images := make([]model.GalleryImage, 0, quantity)
	for i := 0; i < quantity; i++ {
		resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, fmt.Errorf("image generation failed: %w", err)
		}
		blob, ok := firstBlob(resp)
		if !ok {
			return nil, ErrNoMediaReturned
		}
		images = append(images, model.GalleryImage{
			ID:        uuid.NewString(),
			URL:       dataURL(blob),
			CreatedAt: time.Now().UnixMilli(),
			Prompt:    prompt,
		})
	}
	return images, nil
}

// Chat sends one roleplay turn and parses the structured reply. When the
// model answers with plain prose instead of the requested JSON shape, the
// prose becomes the reply text rather than an error.
func (c *Client) Chat(ctx context.Context, profile model.CharacterProfile, history []ChatMessage, message string) (*ChatReply, error) {
	gm := c.client.GenerativeModel(c.textModel)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(buildPersonaPrompt(profile))},
	}
	gm.GenerationConfig.ResponseMIMEType = "application/json"

	session := gm.StartChat()
	session.History = make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := turn.Role
		if role != "user" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return nil, fmt.Errorf("chat failed: %w", err)
	}

	text, ok := firstText(resp)
	if !ok {
		return nil, ErrNoMediaReturned
	}

	var reply ChatReply
	if err := json.Unmarshal([]byte(stripFences(text)), &reply); err != nil || reply.Text == "" {
		return &ChatReply{Text: text}, nil
	}
	return &reply, nil
}

// GenerateStoryline produces the short backstory attached to a character
// on first save.
func (c *Client) GenerateStoryline(ctx context.Context, profile model.CharacterProfile) (string, error) {
	gm := c.client.GenerativeModel(c.textModel)
	resp, err := gm.GenerateContent(ctx, genai.Text(buildStorylinePrompt(profile)))
	if err != nil {
		return "", fmt.Errorf("storyline generation failed: %w", err)
	}
	text, ok := firstText(resp)
	if !ok {
		return "", ErrNoMediaReturned
	}
	return strings.TrimSpace(text), nil
}

func firstBlob(resp *genai.GenerateContentResponse) (genai.Blob, bool) {
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(genai.Blob); ok {
				return blob, true
			}
		}
	}
	return genai.Blob{}, false
}

func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				return string(text), true
			}
		}
	}
	return "", false
}

func dataURL(blob genai.Blob) string {
	mime := blob.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(blob.Data)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
