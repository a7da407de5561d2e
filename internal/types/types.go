package types

// Endpoint types a prompt can target.
const (
	EndpointChat           = "chat"
	EndpointImageToImage   = "image_to_image"
	EndpointImageToVideo   = "image_to_video"
	EndpointImagesToVideos = "images_to_videos"
	EndpointVideoToVideo   = "video_to_video"
	EndpointAudioToText    = "audio_to_text"
	EndpointTextToAudio    = "text_to_audio"
)

// Upstream providers.
const (
	ProviderOpenAI    = "openai"
	ProviderBFL       = "bfl"
	ProviderLuma      = "luma"
	ProviderRunway    = "runway"
	ProviderReplicate = "replicate"
	ProviderGoogle    = "google"
)

// Webhook event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

var endpointTypes = map[string]bool{
	EndpointChat:           true,
	EndpointImageToImage:   true,
	EndpointImageToVideo:   true,
	EndpointImagesToVideos: true,
	EndpointVideoToVideo:   true,
	EndpointAudioToText:    true,
	EndpointTextToAudio:    true,
}

var providerNames = map[string]bool{
	ProviderOpenAI:    true,
	ProviderBFL:       true,
	ProviderLuma:      true,
	ProviderRunway:    true,
	ProviderReplicate: true,
	ProviderGoogle:    true,
}

func ValidEndpointType(s string) bool { return endpointTypes[s] }

func ValidProvider(s string) bool { return providerNames[s] }

// Step output kinds.
const (
	OutputTypeImage = "image"
	OutputTypeVideo = "video"
	OutputTypeText  = "text"
	OutputTypeAudio = "audio"
)

// RunTask is the message published when a run is submitted for
// asynchronous execution.
type RunTask struct {
	RunID string `json:"run_id" msgpack:"run_id"`
}
