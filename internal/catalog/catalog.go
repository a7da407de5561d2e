// Package catalog serves the model lists the dashboard offers when
// editing a prompt. OpenAI models are fetched live and cached; the
// other providers publish no usable listing API, so their entries are
// pinned to the models the adapters accept.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

const defaultTTL = 5 * time.Minute

// Model is one selectable model for a provider.
type Model struct {
	ID        string   `json:"id"`
	Provider  string   `json:"provider"`
	Endpoints []string `json:"endpoints"`
	Default   bool     `json:"default,omitempty"`
}

type cacheEntry struct {
	models  []Model
	expires time.Time
}

// Catalog owns an explicit TTL cache keyed by provider. It is handed
// around by reference; there is no package-level cache state.
type Catalog struct {
	openaiClient *openai.Client
	ttl          time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// New builds a catalog. The OpenAI client may be nil, in which case
// the static OpenAI entries are served instead of a live listing.
func New(openaiClient *openai.Client, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Catalog{
		openaiClient: openaiClient,
		ttl:          ttl,
		now:          time.Now,
		entries:      make(map[string]cacheEntry),
	}
}

// List returns the models for one provider, or for every provider
// when the argument is empty.
func (c *Catalog) List(ctx context.Context, provider string) ([]Model, error) {
	if provider == "" {
		merged := make([]Model, 0, 16)
		for _, p := range providerOrder {
			models, err := c.List(ctx, p)
			if err != nil {
				return nil, err
			}
			merged = append(merged, models...)
		}
		return merged, nil
	}

	if _, known := staticModels[provider]; !known {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	c.mu.Lock()
	entry, ok := c.entries[provider]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expires) {
		return entry.models, nil
	}

	models := c.build(ctx, provider)

	c.mu.Lock()
	c.entries[provider] = cacheEntry{models: models, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return models, nil
}

func (c *Catalog) build(ctx context.Context, provider string) []Model {
	if provider == types.ProviderOpenAI && c.openaiClient != nil {
		models, err := c.listOpenAI(ctx)
		if err == nil {
			return models
		}
		logger.Warn("Falling back to static OpenAI model list", err)
	}

	return staticModels[provider]
}

func (c *Catalog) listOpenAI(ctx context.Context) ([]Model, error) {
	listing, err := c.openaiClient.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(listing.Models))
	for _, m := range listing.Models {
		endpoints := openaiEndpoints(m.ID)
		if len(endpoints) == 0 {
			continue
		}

		models = append(models, Model{
			ID:        m.ID,
			Provider:  types.ProviderOpenAI,
			Endpoints: endpoints,
			Default:   openaiDefaults[m.ID],
		})
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("listing contained no usable models")
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// openaiEndpoints maps a model id onto the endpoint types the OpenAI
// adapters serve. Models outside those families are not listed.
func openaiEndpoints(id string) []string {
	switch {
	case strings.HasPrefix(id, "whisper"):
		return []string{types.EndpointAudioToText}
	case strings.HasPrefix(id, "tts"):
		return []string{types.EndpointTextToAudio}
	case strings.HasPrefix(id, "gpt-") || strings.HasPrefix(id, "chatgpt-") || strings.HasPrefix(id, "o1"):
		return []string{types.EndpointChat}
	default:
		return nil
	}
}

var openaiDefaults = map[string]bool{
	"gpt-4o":    true,
	"whisper-1": true,
	"tts-1":     true,
}

var providerOrder = []string{
	types.ProviderOpenAI,
	types.ProviderBFL,
	types.ProviderReplicate,
	types.ProviderLuma,
	types.ProviderRunway,
	types.ProviderGoogle,
}

var staticModels = map[string][]Model{
	types.ProviderOpenAI: {
		{ID: "gpt-4o", Provider: types.ProviderOpenAI, Endpoints: []string{types.EndpointChat}, Default: true},
		{ID: "gpt-4o-mini", Provider: types.ProviderOpenAI, Endpoints: []string{types.EndpointChat}},
		{ID: "whisper-1", Provider: types.ProviderOpenAI, Endpoints: []string{types.EndpointAudioToText}, Default: true},
		{ID: "tts-1", Provider: types.ProviderOpenAI, Endpoints: []string{types.EndpointTextToAudio}, Default: true},
		{ID: "tts-1-hd", Provider: types.ProviderOpenAI, Endpoints: []string{types.EndpointTextToAudio}},
	},
	types.ProviderBFL: {
		{ID: "flux-kontext-pro", Provider: types.ProviderBFL, Endpoints: []string{types.EndpointImageToImage}, Default: true},
		{ID: "flux-kontext-max", Provider: types.ProviderBFL, Endpoints: []string{types.EndpointImageToImage}},
	},
	types.ProviderReplicate: {
		{ID: "zsxkib/ic-light", Provider: types.ProviderReplicate, Endpoints: []string{types.EndpointImageToImage}, Default: true},
	},
	types.ProviderLuma: {
		{ID: "ray-2", Provider: types.ProviderLuma, Endpoints: []string{types.EndpointImageToVideo, types.EndpointImagesToVideos}, Default: true},
		{ID: "ray-flash-2", Provider: types.ProviderLuma, Endpoints: []string{types.EndpointImageToVideo, types.EndpointImagesToVideos}},
		{ID: "ray-1-6", Provider: types.ProviderLuma, Endpoints: []string{types.EndpointImageToVideo, types.EndpointImagesToVideos}},
	},
	types.ProviderRunway: {
		{ID: "gen3a_turbo", Provider: types.ProviderRunway, Endpoints: []string{types.EndpointImageToVideo}, Default: true},
		{ID: "gen4_turbo", Provider: types.ProviderRunway, Endpoints: []string{types.EndpointImageToVideo}},
		{ID: "gen4_aleph", Provider: types.ProviderRunway, Endpoints: []string{types.EndpointVideoToVideo}, Default: true},
	},
	types.ProviderGoogle: {
		{ID: "veo-2.0-generate-001", Provider: types.ProviderGoogle, Endpoints: []string{types.EndpointImageToVideo}, Default: true},
		{ID: "veo-3.0-generate-preview", Provider: types.ProviderGoogle, Endpoints: []string{types.EndpointImageToVideo}},
	},
}
