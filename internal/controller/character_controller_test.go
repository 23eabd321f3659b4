package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"musegen_backend/internal/middleware"
	"musegen_backend/internal/model"
	"musegen_backend/pkg/character"
	"musegen_backend/pkg/entitlement"
	"musegen_backend/pkg/generation"
	"musegen_backend/pkg/store"
	"musegen_backend/pkg/utils/jwt"
)

// stubGenerator stands in for the external generation service.
type stubGenerator struct {
	images    []model.GalleryImage
	reply     *generation.ChatReply
	storyline string
	err       error
}

func (s *stubGenerator) GenerateCharacterImages(ctx context.Context, profile model.CharacterProfile, params generation.ImageParams) ([]model.GalleryImage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.images, nil
}

func (s *stubGenerator) Chat(ctx context.Context, profile model.CharacterProfile, history []generation.ChatMessage, message string) (*generation.ChatReply, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func (s *stubGenerator) GenerateStoryline(ctx context.Context, profile model.CharacterProfile) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.storyline, nil
}

type testEnv struct {
	app          *fiber.App
	repo         *character.Repository
	entitlements *entitlement.Manager
}

func newTestEnv(t *testing.T, generator generation.Service) testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	kv, err := store.New(db, store.DefaultMaxBytes, nil)
	require.NoError(t, err)

	repo := character.NewRepository(kv)
	entitlements := entitlement.NewManager(kv)

	characterController := NewCharacterController(repo, entitlements, generator)
	generationController := NewGenerationController(repo, entitlements, generator)

	app := fiber.New()
	characters := app.Group("/api/characters", middleware.AuthMiddleware(), middleware.AgeGate())
	characters.Get("/", characterController.ListMyCharacters)
	characters.Post("/", middleware.CheckCharacterLimit(repo), characterController.CreateCharacter)
	characters.Put("/:id", characterController.UpdateCharacter)
	characters.Delete("/:id", characterController.DeleteCharacter)
	characters.Post("/:id/images", generationController.GenerateImages)
	characters.Post("/:id/chat", generationController.Chat)

	return testEnv{app: app, repo: repo, entitlements: entitlements}
}

func authedRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	token, err := jwt.GenerateToken("alice")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: middleware.AgeCookieName, Value: "true"})
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateCharacter(t *testing.T) {
	generator := &stubGenerator{
		storyline: "A quiet painter from the coast.",
		images: []model.GalleryImage{{
			ID:        "img1",
			URL:       "data:image/jpeg;base64,abcd",
			CreatedAt: time.Now().UnixMilli(),
			Prompt:    "Initial character image",
		}},
	}
	env := newTestEnv(t, generator)

	req := authedRequest(t, http.MethodPost, "/api/characters/", map[string]interface{}{
		"name":        "Mira",
		"personality": "playful",
	})
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	characters := env.repo.Load("alice")
	require.Len(t, characters, 1)
	assert.Equal(t, "Mira", characters[0].Name)
	assert.Equal(t, "A quiet painter from the coast.", characters[0].Storyline)
	require.Len(t, characters[0].SingleImages, 1)

	// The initial portrait consumed one unit.
	sub, err := env.entitlements.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, sub.DailyUsage)
}

func TestCreateCharacterRejectedAtAccountCap(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{storyline: "x"})

	seeded := make([]model.CharacterProfile, 0, character.MaxCharactersPerAccount)
	for i := 0; i < character.MaxCharactersPerAccount; i++ {
		seeded = append(seeded, model.CharacterProfile{
			ID:   fmt.Sprintf("c%d", i),
			Name: fmt.Sprintf("Character %d", i),
		})
	}
	require.True(t, env.repo.Save("alice", seeded))

	req := authedRequest(t, http.MethodPost, "/api/characters/", map[string]interface{}{
		"name": "One Too Many",
	})
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Rejected before any write: the collection is unchanged.
	assert.Len(t, env.repo.Load("alice"), character.MaxCharactersPerAccount)
}

func TestGenerateImagesExhaustedQuota(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{
		images: []model.GalleryImage{{ID: "img1", URL: "data:x", CreatedAt: 1}},
	})

	require.True(t, env.repo.Save("alice", []model.CharacterProfile{{ID: "c1", Name: "Mira"}}))

	limit := entitlement.DailyLimit(model.TierTrial)
	for i := 0; i < limit; i++ {
		allowance, err := env.entitlements.TryConsume("alice")
		require.NoError(t, err)
		require.True(t, allowance.Allowed)
	}

	req := authedRequest(t, http.MethodPost, "/api/characters/c1/images", generation.ImageParams{Quantity: 1})
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body, "subscription")

	// The denied call consumed nothing.
	sub, err := env.entitlements.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, limit, sub.DailyUsage)
}

func TestGenerateImagesAppendsToGallery(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{
		images: []model.GalleryImage{{ID: "new", URL: "data:new", CreatedAt: 9000, Prompt: "pose"}},
	})

	require.True(t, env.repo.Save("alice", []model.CharacterProfile{{
		ID:   "c1",
		Name: "Mira",
		SingleImages: []model.GalleryImage{
			{ID: "old", URL: "data:old", CreatedAt: 1000},
		},
	}}))

	req := authedRequest(t, http.MethodPost, "/api/characters/c1/images", generation.ImageParams{Pose: "standing", Quantity: 1})
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	characters := env.repo.Load("alice")
	require.Len(t, characters, 1)
	require.Len(t, characters[0].SingleImages, 2)
	assert.Equal(t, "new", characters[0].SingleImages[0].ID)
}

func TestChatConsumesOneUnit(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{
		reply: &generation.ChatReply{
			Text:        "Hey you! I was just thinking about the beach.",
			ImagePrompt: "at the beach, golden hour",
			Suggestions: []string{"Tell me more", "Show me"},
		},
	})

	require.True(t, env.repo.Save("alice", []model.CharacterProfile{{ID: "c1", Name: "Mira"}}))

	req := authedRequest(t, http.MethodPost, "/api/characters/c1/chat", ChatInput{Message: "hi"})
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	reply := body["reply"].(map[string]interface{})
	assert.Equal(t, "Hey you! I was just thinking about the beach.", reply["response"])
	assert.Equal(t, "at the beach, golden hour", reply["imagePrompt"])

	sub, err := env.entitlements.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, sub.DailyUsage)
}

func TestAgeGateBlocksUnconfirmedSessions(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	token, err := jwt.GenerateToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/characters/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGenerationFailureIsScoped(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{err: generation.ErrNoMediaReturned})

	require.True(t, env.repo.Save("alice", []model.CharacterProfile{{ID: "c1", Name: "Mira"}}))

	req := authedRequest(t, http.MethodPost, "/api/characters/c1/images", generation.ImageParams{Quantity: 1})
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	// The character itself is untouched by the failed generation.
	characters := env.repo.Load("alice")
	require.Len(t, characters, 1)
	assert.Empty(t, characters[0].SingleImages)
}
