package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is the page size used when fetching sprint issues unless
// overridden via configuration.
const DefaultPageSize = 100

// Fetcher is an interface for the Jira API calls the reporting pipelines use.
type Fetcher interface {
	SprintIssues(ctx context.Context, sprintID, pageSize int) ([]Issue, error)
	SprintIssuesPage(ctx context.Context, sprintID, startAt, maxResults int) (*SprintIssuesPage, error)
	Issue(ctx context.Context, key string) (*Issue, error)
	Fields(ctx context.Context) ([]FieldMeta, error)
}

// Client handles communication with the Jira REST API.
type Client struct {
	BaseURL *url.URL     // Instance base URL (must end with a slash)
	Client  *http.Client // Underlying HTTP client
	auth    AuthFunc
}

// NewClient returns a Jira client with the given base URL and authentication
// function. The transport uses pooled connections so pagination isn't
// penalized; timeout is the hard per-request cap.
func NewClient(baseURL *url.URL, auth AuthFunc, skipVerify bool, timeout time.Duration) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: skipVerify, // NOTE: intended for dev only
		},

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: tr,
		},
		auth: auth,
	}
}

// SprintIssuesPage fetches a single page of issues from the Agile sprint
// issues endpoint.
func (c *Client) SprintIssuesPage(ctx context.Context, sprintID, startAt, maxResults int) (*SprintIssuesPage, error) {
	if sprintID <= 0 {
		return nil, fmt.Errorf("invalid sprint id: %d", sprintID)
	}

	params := url.Values{}
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))

	path := fmt.Sprintf("rest/agile/1.0/sprint/%d/issue?%s", sprintID, params.Encode())
	body, _, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch sprint issues: %w", err)
	}

	var page SprintIssuesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode sprint issues page: %w", err)
	}
	return &page, nil
}

// SprintIssues fetches every issue of the given sprint, page by page. The
// cursor advances by pageSize until it passes the total reported by the API.
func (c *Client) SprintIssues(ctx context.Context, sprintID, pageSize int) ([]Issue, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var issues []Issue
	startAt := 0
	for {
		page, err := c.SprintIssuesPage(ctx, sprintID, startAt, pageSize)
		if err != nil {
			return nil, err
		}
		issues = append(issues, page.Issues...)

		startAt += pageSize
		if startAt >= page.Total {
			break
		}
		if len(page.Issues) == 0 {
			// backend reports more results but stopped returning issues
			break
		}
	}
	return issues, nil
}

// Issue fetches a single issue by key or ID.
func (c *Client) Issue(ctx context.Context, key string) (*Issue, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("missing issue key")
	}

	body, _, err := c.doRequest(ctx, http.MethodGet, "rest/api/2/issue/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch issue %s: %w", key, err)
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("decode issue %s: %w", key, err)
	}
	return &issue, nil
}

// Fields fetches the metadata of all fields known to the instance.
func (c *Client) Fields(ctx context.Context) ([]FieldMeta, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, "rest/api/2/field", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch field metadata: %w", err)
	}

	var fields []FieldMeta
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode field metadata: %w", err)
	}
	return fields, nil
}

// doRequest performs an authenticated HTTP request and returns response body, status, and error.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (response []byte, statusCode int, err error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	// Parse path into relative URL with optional query
	relURL, err := url.Parse(path)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("parse path: %w", err)
	}
	fullURL := c.BaseURL.ResolveReference(relURL).String()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("create request: %w", err)
	}

	c.auth(req) // apply authentication

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return respBody, resp.StatusCode, fmt.Errorf("jira error: %s", string(respBody))
	}
	return respBody, resp.StatusCode, nil
}
