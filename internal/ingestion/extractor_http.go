package ingestion

import (
	"context"
	"fmt"
	"net/http"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/client"
)

// HTTPScreenshotExtractor calls the external AI screenshot reader. The reader
// is a black box; this side only knows the request/response contract.
type HTTPScreenshotExtractor struct {
	client *client.HttpClient
}

func NewHTTPScreenshotExtractor(baseURL string) *HTTPScreenshotExtractor {
	return &HTTPScreenshotExtractor{
		client: client.NewHttpClient(baseURL),
	}
}

type extractRequest struct {
	ImageRef string `json:"image_ref"`
}

func (e *HTTPScreenshotExtractor) Extract(ctx context.Context, imageRef string) (*PaymentFields, error) {
	resp, err := e.client.POST(ctx, "/v1/extract", extractRequest{ImageRef: imageRef})
	if err != nil {
		return nil, fmt.Errorf("screenshot extractor request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screenshot extractor returned status %d", resp.StatusCode)
	}

	var fields PaymentFields
	if err := resp.DecodeJSON(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode extracted fields: %w", err)
	}
	if fields.Amount <= 0 {
		return nil, fmt.Errorf("extractor found no positive amount in screenshot %s", imageRef)
	}

	return &fields, nil
}
