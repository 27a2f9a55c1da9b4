package indexer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"artifact-sync-service/internal/config"
	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
	"artifact-sync-service/internal/dto"
)

// maxResponseBytes bounds how much of an indexer reply is buffered.
const maxResponseBytes = 16 << 20

type indexerClient struct {
	endpoint     string
	includeState bool
	client       *http.Client
}

// NewIndexerClient creates the HTTP adapter that posts sync batches to the
// indexing service.
func NewIndexerClient(cfg *config.SyncConfig) ports.IndexerClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &indexerClient{
		endpoint:     strings.TrimRight(cfg.TargetURL, "/") + "/" + strings.TrimLeft(cfg.EndpointPath, "/"),
		includeState: cfg.IncludeState,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *indexerClient) Endpoint() string {
	return c.endpoint
}

// PostBatch sends the batch as a JSON array and returns whatever the indexer
// answered. Only failures to exchange bytes are errors; status codes are left
// to the caller.
func (c *indexerClient) PostBatch(ctx context.Context, batch domain.SyncBatch) (*ports.TransportResponse, error) {
	payload, err := dto.ToSyncPayload(batch, c.includeState)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create indexer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.WithFields(log.Fields{
		"url":        c.endpoint,
		"batch_size": len(batch),
		"bytes":      len(payload),
	}).Debug("posting sync batch to indexer")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read indexer response: %w", err)
	}

	log.WithFields(log.Fields{
		"url":    c.endpoint,
		"status": resp.StatusCode,
	}).Debug("indexer responded")

	return &ports.TransportResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
