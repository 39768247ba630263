// Package client is a Go consumer of the affiliate listing API. Browser
// carries the listing screen behaviour: debounced search, page reset on
// filter change, a minimum loading time and generation-stamped responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

// Client calls the affiliate API with a bearer token
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client; a nil httpClient gets a 30 second timeout
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// ListAffiliates fetches one page of the filtered listing
func (c *Client) ListAffiliates(ctx context.Context, f search.Filter) (*models.AffiliatePage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/affiliates?"+filterQuery(f).Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var page models.AffiliatePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	// The server reports backend failures inside a 200 page
	if page.Error != "" {
		return &page, &APIError{Status: resp.StatusCode, Message: page.Error}
	}
	return &page, nil
}

// CreateImport uploads a spreadsheet for background import. A replayed
// idempotency key answers with the job created the first time.
func (c *Client) CreateImport(ctx context.Context, fileName string, data []byte, idempotencyKey string) (*models.Job, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/affiliates/imports", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload import: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var job models.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode import job: %w", err)
	}
	return &job, nil
}

// ImportStatus fetches the progress and row outcomes of an import job
func (c *Client) ImportStatus(ctx context.Context, jobID string) (*models.JobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/affiliates/imports/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get import status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var status models.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode import status: %w", err)
	}
	return &status, nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}

func filterQuery(f search.Filter) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("q", f.Query)
	set("seccional", f.Seccional)
	set("role", f.Role)
	set("status", f.Status)
	set("date", f.DateRange)
	set("from", f.From)
	set("to", f.To)
	set("sort", f.Sort)
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	return v
}
