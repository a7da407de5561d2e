package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

func init() {
	logger.InitLogger(&config.Config{Environment: "test"})
}

func clientFor(server *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func findModel(models []Model, id string) *Model {
	for i := range models {
		if models[i].ID == id {
			return &models[i]
		}
	}
	return nil
}

func TestList_StaticProviderEntries(t *testing.T) {
	c := New(nil, 0)

	models, err := c.List(context.Background(), types.ProviderLuma)
	require.NoError(t, err)
	require.NotEmpty(t, models)

	for _, m := range models {
		assert.Equal(t, types.ProviderLuma, m.Provider)
	}

	def := findModel(models, "ray-2")
	require.NotNil(t, def)
	assert.True(t, def.Default)
	assert.Contains(t, def.Endpoints, types.EndpointImageToVideo)
	assert.Contains(t, def.Endpoints, types.EndpointImagesToVideos)
}

func TestList_UnknownProvider(t *testing.T) {
	c := New(nil, 0)

	_, err := c.List(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestList_MergedListingCoversAllProviders(t *testing.T) {
	c := New(nil, 0)

	models, err := c.List(context.Background(), "")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, m := range models {
		seen[m.Provider] = true
	}
	for _, provider := range []string{
		types.ProviderOpenAI, types.ProviderBFL, types.ProviderReplicate,
		types.ProviderLuma, types.ProviderRunway, types.ProviderGoogle,
	} {
		assert.True(t, seen[provider], "missing provider %s", provider)
	}
}

func TestList_LiveOpenAIListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"id":"whisper-1","object":"model"},
			{"id":"gpt-4o","object":"model"},
			{"id":"text-embedding-3-small","object":"model"},
			{"id":"tts-1-hd","object":"model"}
		]}`))
	}))
	defer server.Close()

	c := New(clientFor(server), 0)

	models, err := c.List(context.Background(), types.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, models, 3)

	chat := findModel(models, "gpt-4o")
	require.NotNil(t, chat)
	assert.Equal(t, []string{types.EndpointChat}, chat.Endpoints)
	assert.True(t, chat.Default)

	transcribe := findModel(models, "whisper-1")
	require.NotNil(t, transcribe)
	assert.Equal(t, []string{types.EndpointAudioToText}, transcribe.Endpoints)

	speech := findModel(models, "tts-1-hd")
	require.NotNil(t, speech)
	assert.Equal(t, []string{types.EndpointTextToAudio}, speech.Endpoints)
	assert.False(t, speech.Default)

	assert.Nil(t, findModel(models, "text-embedding-3-small"))
}

func TestList_CachesWithinTTL(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","object":"model"}]}`))
	}))
	defer server.Close()

	c := New(clientFor(server), time.Minute)

	_, err := c.List(context.Background(), types.ProviderOpenAI)
	require.NoError(t, err)
	_, err = c.List(context.Background(), types.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = c.List(context.Background(), types.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestList_FallsBackToStaticOnListingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(clientFor(server), 0)

	models, err := c.List(context.Background(), types.ProviderOpenAI)
	require.NoError(t, err)
	assert.NotNil(t, findModel(models, "gpt-4o"))
	assert.NotNil(t, findModel(models, "gpt-4o-mini"))
}
