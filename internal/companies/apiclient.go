package companies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const listFlightKey = "companies:list"

// APIClient talks to a remote companies API over HTTP.
type APIClient struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
	flights  singleflight.Group
}

// NewAPIClient returns a client rooted at baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

// List fetches every company. Concurrent calls share one request.
func (c *APIClient) List(ctx context.Context) ([]Company, error) {
	resultChan := c.flights.DoChan(listFlightKey, func() (interface{}, error) {
		return c.fetchList(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]Company)
		return append([]Company(nil), shared...), nil
	}
}

// Delete removes the company with id on the remote side.
func (c *APIClient) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/companies/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return fmt.Errorf("companies api: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("companies api: delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeProblem(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *APIClient) fetchList(ctx context.Context) ([]Company, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/companies", nil)
	if err != nil {
		return nil, fmt.Errorf("companies api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("companies api: list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeProblem(resp)
	}
	var items []Company
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("companies api: decode list: %w", err)
	}
	for i := range items {
		if err := c.validate.Struct(items[i]); err != nil {
			return nil, fmt.Errorf("companies api: invalid company at index %d: %w", i, err)
		}
	}
	if items == nil {
		items = []Company{}
	}
	return items, nil
}

type problemBody struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func decodeProblem(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	var body problemBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		if body.Title != "" {
			apiErr.Title = body.Title
		}
		apiErr.Detail = body.Detail
	}
	return apiErr
}
