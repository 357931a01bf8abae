package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/verihire/outbox/internal/config"
	"github.com/verihire/outbox/internal/payload"
	"github.com/verihire/outbox/internal/registry"
)

// NewHTTPExecutor builds an executor that replays a queued mutation against
// the action's endpoint. JSON bodies by default; payloads carrying a
// flattened attachment are rebuilt into multipart/form-data first.
// A nil client uses http.DefaultClient.
func NewHTTPExecutor(client *http.Client, action config.Action) registry.Executor {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, data map[string]any) error {
		var (
			body        []byte
			contentType string
			err         error
		)
		if data != nil && payload.IsAttachment(data) {
			body, contentType, err = payload.BuildMultipart(data)
			if err != nil {
				return err
			}
		} else {
			body, err = json.Marshal(data)
			if err != nil {
				return fmt.Errorf("encoding mutation payload: %w", err)
			}
			contentType = "application/json"
		}

		req, err := http.NewRequestWithContext(ctx, action.Method, action.Endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		// Drain so the connection can be reused across sequential dispatches.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s %s: %s", action.Method, action.Endpoint, resp.Status)
		}
		return nil
	}
}
