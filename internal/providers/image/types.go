package image

import (
	"context"
	"strings"
)

// AspectRatio enumerates supported render shapes.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "LANDSCAPE"
	AspectPortrait  AspectRatio = "PORTRAIT"
	AspectSquare    AspectRatio = "SQUARE"
)

// NormalizeAspectRatio sanitizes free-form user input into a supported shape.
func NormalizeAspectRatio(aspect string) AspectRatio {
	switch strings.ToUpper(strings.TrimSpace(aspect)) {
	case string(AspectPortrait):
		return AspectPortrait
	case string(AspectSquare):
		return AspectSquare
	default:
		return AspectLandscape
	}
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt      string
	AspectRatio AspectRatio
	RequestID   string
}

// Asset represents a generated image. URL may be empty when the provider
// accepted the request but did not return a resolvable reference.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Asset, error)
}

// GenerationError is any failure surfaced by a provider: transport errors,
// rejected requests, and malformed responses alike. The message ends up on
// the job record verbatim.
type GenerationError struct {
	Message string
}

func (e *GenerationError) Error() string {
	return e.Message
}
