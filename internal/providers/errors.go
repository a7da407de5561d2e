package providers

import (
	"errors"
	"fmt"
)

var (
	ErrGenerationTimeout = errors.New("timed out waiting for provider generation")
	ErrMissingAPIKey     = errors.New("provider api key is not configured")
	ErrNoInput           = errors.New("step has no input to work with")
)

// UnsupportedStepError reports a (endpoint type, provider) pair no
// adapter is registered for.
type UnsupportedStepError struct {
	EndpointType string
	Provider     string
}

func (e *UnsupportedStepError) Error() string {
	return fmt.Sprintf("unsupported combination: endpoint type %q with provider %q", e.EndpointType, e.Provider)
}
