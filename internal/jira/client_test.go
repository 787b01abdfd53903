package jira

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("creates a new client with given parameters", func(t *testing.T) {
		t.Parallel()

		rawURL := "https://jira.example.com/"
		parsed, err := url.Parse(rawURL)
		require.NoError(t, err)

		auth := func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer dummy")
		}

		client := NewClient(parsed, auth, true, 2*time.Second)

		assert.Equal(t, parsed, client.BaseURL)
		assert.NotNil(t, client.Client)
		assert.NotNil(t, client.auth)
		assert.Equal(t, 2*time.Second, client.Client.Timeout)
	})
}

func TestSprintIssuesPage(t *testing.T) {
	t.Parallel()

	t.Run("invalid sprint id returns error", func(t *testing.T) {
		t.Parallel()

		c := &Client{}
		page, err := c.SprintIssuesPage(context.Background(), 0, 0, 50)

		assert.Error(t, err)
		assert.Nil(t, page)
		assert.Contains(t, err.Error(), "invalid sprint id")
	})

	t.Run("requests the agile endpoint with paging params", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					assert.Equal(t, "GET", r.Method)
					assert.Equal(t, "/rest/agile/1.0/sprint/42/issue", r.URL.Path)
					assert.Equal(t, "5", r.URL.Query().Get("startAt"))
					assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`{"startAt":5,"maxResults":50,"total":6,"issues":[{"key":"KPI-6"}]}`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		page, err := client.SprintIssuesPage(context.Background(), 42, 5, 50)

		require.NoError(t, err)
		assert.Equal(t, 6, page.Total)
		require.Len(t, page.Issues, 1)
		assert.Equal(t, "KPI-6", page.Issues[0].Key)
	})

	t.Run("returns error on invalid response body", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`not json`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		page, err := client.SprintIssuesPage(context.Background(), 42, 0, 50)

		assert.Error(t, err)
		assert.Nil(t, page)
		assert.Contains(t, err.Error(), "decode sprint issues page")
	})

	t.Run("propagates jira errors", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: http.StatusNotFound,
						Body:       io.NopCloser(bytes.NewBufferString(`sprint does not exist`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		page, err := client.SprintIssuesPage(context.Background(), 42, 0, 50)

		assert.Error(t, err)
		assert.Nil(t, page)
		assert.Contains(t, err.Error(), "fetch sprint issues")
		assert.Contains(t, err.Error(), "sprint does not exist")
	})
}

func TestSprintIssues(t *testing.T) {
	t.Parallel()

	t.Run("fetches a single page", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/agile/1.0/sprint/7/issue", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"startAt":0,"maxResults":50,"total":2,"issues":[{"key":"KPI-1"},{"key":"KPI-2"}]}`) // nolint:errcheck
		}))
		defer srv.Close()

		client := newTestClient(t, srv)
		issues, err := client.SprintIssues(context.Background(), 7, 50)

		require.NoError(t, err)
		require.Len(t, issues, 2)
		assert.Equal(t, "KPI-1", issues[0].Key)
		assert.Equal(t, "KPI-2", issues[1].Key)
	})

	t.Run("paginates until the reported total", func(t *testing.T) {
		t.Parallel()

		all := []string{"KPI-1", "KPI-2", "KPI-3", "KPI-4", "KPI-5"}
		var requests []int

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startAt, err := strconv.Atoi(r.URL.Query().Get("startAt"))
			require.NoError(t, err)
			requests = append(requests, startAt)

			end := startAt + 2
			if end > len(all) {
				end = len(all)
			}
			issues := make([]string, 0, 2)
			for _, key := range all[startAt:end] {
				issues = append(issues, fmt.Sprintf(`{"key":%q}`, key))
			}

			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"startAt":%d,"maxResults":2,"total":%d,"issues":[%s]}`, startAt, len(all), strings.Join(issues, ",")) // nolint:errcheck
		}))
		defer srv.Close()

		client := newTestClient(t, srv)
		issues, err := client.SprintIssues(context.Background(), 7, 2)

		require.NoError(t, err)
		require.Len(t, issues, 5)
		assert.Equal(t, []int{0, 2, 4}, requests)
		assert.Equal(t, "KPI-5", issues[4].Key)
	})

	t.Run("stops when the backend stops returning issues", func(t *testing.T) {
		t.Parallel()

		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusOK)
			// total claims more results than the backend ever returns
			fmt.Fprint(w, `{"startAt":0,"maxResults":2,"total":100,"issues":[]}`) // nolint:errcheck
		}))
		defer srv.Close()

		client := newTestClient(t, srv)
		issues, err := client.SprintIssues(context.Background(), 7, 2)

		require.NoError(t, err)
		assert.Empty(t, issues)
		assert.Equal(t, 1, calls)
	})

	t.Run("falls back to the default page size", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "100", r.URL.Query().Get("maxResults"))
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"startAt":0,"maxResults":100,"total":0,"issues":[]}`) // nolint:errcheck
		}))
		defer srv.Close()

		client := newTestClient(t, srv)
		_, err := client.SprintIssues(context.Background(), 7, 0)

		require.NoError(t, err)
	})

	t.Run("propagates fetch errors", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `unauthorized`) // nolint:errcheck
		}))
		defer srv.Close()

		client := newTestClient(t, srv)
		issues, err := client.SprintIssues(context.Background(), 7, 50)

		assert.Error(t, err)
		assert.Nil(t, issues)
		assert.Contains(t, err.Error(), "jira error")
	})
}

func TestIssue(t *testing.T) {
	t.Parallel()

	t.Run("missing key returns error", func(t *testing.T) {
		t.Parallel()

		c := &Client{}
		issue, err := c.Issue(context.Background(), "   ")

		assert.Error(t, err)
		assert.Nil(t, issue)
		assert.Contains(t, err.Error(), "missing issue key")
	})

	t.Run("fetches an issue by key", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					assert.Equal(t, "/rest/api/2/issue/KPI-1", r.URL.Path)
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`{"key":"KPI-1","fields":{"summary":"add csv export","customfield_10016":5}}`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		issue, err := client.Issue(context.Background(), "KPI-1")

		require.NoError(t, err)
		assert.Equal(t, "KPI-1", issue.Key)
		assert.Equal(t, "add csv export", issue.Fields.Summary)
		assert.Equal(t, 5.0, issue.StoryPoints("customfield_10016"))
	})

	t.Run("returns error on invalid response body", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`[]`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		issue, err := client.Issue(context.Background(), "KPI-1")

		assert.Error(t, err)
		assert.Nil(t, issue)
		assert.Contains(t, err.Error(), "decode issue KPI-1")
	})
}

func TestFields(t *testing.T) {
	t.Parallel()

	t.Run("fetches field metadata", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					assert.Equal(t, "/rest/api/2/field", r.URL.Path)
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`[{"id":"customfield_10016","name":"Story Points","custom":true},{"id":"summary","name":"Summary","custom":false}]`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		fields, err := client.Fields(context.Background())

		require.NoError(t, err)
		require.Len(t, fields, 2)
		assert.Equal(t, "customfield_10016", fields[0].ID)
		assert.Equal(t, "Story Points", fields[0].Name)
		assert.True(t, fields[0].Custom)
	})

	t.Run("returns error on invalid response body", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://jira.example.com/"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`{}`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		fields, err := client.Fields(context.Background())

		assert.Error(t, err)
		assert.Nil(t, fields)
		assert.Contains(t, err.Error(), "decode field metadata")
	})
}

func TestDoRequest(t *testing.T) {
	t.Parallel()

	t.Run("returns error for invalid URL path", func(t *testing.T) {
		t.Parallel()

		c := NewClient(mustParseURL(t, "https://example.com"), func(r *http.Request) {}, false, 2*time.Second)
		_, code, err := c.doRequest(context.Background(), http.MethodGet, "%%%", nil)

		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, err.Error(), "parse path")
	})

	t.Run("marshals body and sets reader", func(t *testing.T) {
		t.Parallel()

		var gotBody string

		client := &Client{
			BaseURL: mustParseURL(t, "https://example.com"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					b, _ := io.ReadAll(r.Body)
					gotBody = string(b)
					return &http.Response{
						StatusCode: 200,
						Body:       io.NopCloser(bytes.NewBufferString(`{"ok":true}`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		_, code, err := client.doRequest(context.Background(), http.MethodPost, "foo", map[string]string{"key": "value"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, gotBody, `"key":"value"`)
	})

	t.Run("returns error on marshaling failure", func(t *testing.T) {
		t.Parallel()

		client := NewClient(mustParseURL(t, "https://example.com"), func(r *http.Request) {}, false, 2*time.Second)
		_, code, err := client.doRequest(context.Background(), http.MethodPost, "foo", func() {}) // unmarshalable

		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, err.Error(), "marshal body")
	})

	t.Run("returns error on client.Do failure", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://example.com"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return nil, errors.New("connection refused")
				}),
			},
			auth: func(r *http.Request) {},
		}

		_, code, err := client.doRequest(context.Background(), http.MethodGet, "foo", nil)

		assert.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, code)
		assert.Contains(t, err.Error(), "do request")
	})

	t.Run("returns error on non-2xx response", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://example.com"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: 404,
						Body:       io.NopCloser(bytes.NewBufferString("not found")),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		body, code, err := client.doRequest(context.Background(), http.MethodGet, "foo", nil)

		assert.Error(t, err)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not found", string(body))
	})

	t.Run("reads and returns valid response", func(t *testing.T) {
		t.Parallel()

		client := &Client{
			BaseURL: mustParseURL(t, "https://example.com"),
			Client: &http.Client{
				Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(`{"ok":true}`)),
					}, nil
				}),
			},
			auth: func(r *http.Request) {},
		}

		body, code, err := client.doRequest(context.Background(), http.MethodGet, "foo", nil)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})
}

func TestDoRequest_ReadBodyFailure(t *testing.T) {
	t.Parallel()

	baseURL := mustParseURL(t, "https://example.com/")
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(brokenReader{}),
	}

	client := &Client{
		BaseURL: baseURL,
		Client: &http.Client{
			Transport: mockDoer{resp: resp},
		},
		auth: func(r *http.Request) {},
	}

	_, code, err := client.doRequest(context.Background(), "GET", "rest/api/2/field", nil)

	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, err.Error(), "read response")
}

// brokenReader always fails
type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, errors.New("fail") }
func (brokenReader) Close() error               { return nil }

type mockDoer struct {
	resp *http.Response
	err  error
}

func (m mockDoer) RoundTrip(r *http.Request) (*http.Response, error) { return m.resp, m.err }

type roundTripperFunc func(r *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	return &Client{
		BaseURL: mustParseURL(t, srv.URL+"/"),
		Client:  srv.Client(),
		auth:    func(r *http.Request) {},
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
