package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trainsync/pkg/logger"
)

// Config contains HTTP store configuration.
type Config struct {
	// BaseURL is the root of the row-store API.
	BaseURL string

	// Token is the bearer token sent with each request.
	Token string

	// Timeout is the per-request timeout. Default: 10s.
	Timeout time.Duration

	// HTTPClient overrides the default client. Mainly for tests.
	HTTPClient *http.Client
}

// httpStore implements Store against an HTTP row-store API.
//
// Endpoints follow the generic collection shape:
//
//	POST   {base}/collections/{name}        insert, returns created row
//	PATCH  {base}/collections/{name}/{id}   update, returns updated row
//	DELETE {base}/collections/{name}/{id}   delete
//	GET    {base}/collections/{name}?k=v    select with equality filter
type httpStore struct {
	config Config
	client *http.Client
	logger logger.Logger
}

// NewHTTP creates a Store backed by the remote HTTP API.
func NewHTTP(cfg Config, log logger.Logger) Store {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &httpStore{
		config: cfg,
		client: client,
		logger: log,
	}
}

// Insert implements Store.Insert.
func (s *httpStore) Insert(ctx context.Context, collection string, fields Fields) (Row, error) {
	var row Row
	err := s.do(ctx, http.MethodPost, s.collectionPath(collection, ""), fields, &row)
	if err != nil {
		return nil, fmt.Errorf("%w: insert into %s: %v", ErrWriteFailed, collection, err)
	}

	s.logger.Debug("row inserted", "collection", collection, "id", row.ID())
	return row, nil
}

// Update implements Store.Update.
func (s *httpStore) Update(ctx context.Context, collection, id string, fields Fields) (Row, error) {
	var row Row
	err := s.do(ctx, http.MethodPatch, s.collectionPath(collection, id), fields, &row)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return nil, fmt.Errorf("%w: update %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	s.logger.Debug("row updated", "collection", collection, "id", id)
	return row, nil
}

// Delete implements Store.Delete.
func (s *httpStore) Delete(ctx context.Context, collection, id string) error {
	err := s.do(ctx, http.MethodDelete, s.collectionPath(collection, id), nil, nil)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			// Deleting an absent row is not an error.
			return nil
		}
		return fmt.Errorf("%w: delete %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	s.logger.Debug("row deleted", "collection", collection, "id", id)
	return nil
}

// Select implements Store.Select.
func (s *httpStore) Select(ctx context.Context, collection string, filter Filter) ([]Row, error) {
	endpoint := s.collectionPath(collection, "")
	if len(filter) > 0 {
		values := url.Values{}
		for k, v := range filter {
			values.Set(k, fmt.Sprintf("%v", v))
		}
		endpoint += "?" + values.Encode()
	}

	var rows []Row
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", collection, err)
	}

	return rows, nil
}

// do executes one request against the service.
func (s *httpStore) do(ctx context.Context, method, endpoint string, body any, out any) error {
	fullURL := strings.TrimRight(s.config.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// collectionPath builds the endpoint for a collection or a row within it.
func (s *httpStore) collectionPath(collection, id string) string {
	p := "collections/" + url.PathEscape(collection)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// asAPIError unwraps err into an *APIError if possible.
func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
