package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/containeroo/tinyflags"
)

// main starts a fake Jira instance serving canned sprint data, useful for
// exercising sprintkpi without a real instance:
//
//	go run ./tests --data-dir tests/data
//	sprintkpi report --base-url http://localhost:8081 --bearer-token x \
//	  --story-points-field customfield_10016 --sprint-id 42
func main() {
	var (
		flagPort        int
		flagDataDir     string
		flagRandomDelay bool
	)

	tf := tinyflags.NewFlagSet("fake-jira", tinyflags.ExitOnError)
	tf.IntVar(&flagPort, "port", 8081, "Port to listen on").Value()
	tf.StringVar(&flagDataDir, "data-dir", "./tests/data", "Directory with canned JSON data").Value()
	tf.BoolVar(&flagRandomDelay, "random-delay", false, "Delay responses randomly (200-1000ms)")

	if err := tf.Parse(os.Args[1:]); err != nil {
		log.Fatal("flag parse error:", err)
	}

	dataDir, err := filepath.Abs(flagDataDir)
	if err != nil {
		log.Fatalf("data dir error: %v", err)
	}

	srv := &fakeJira{dataDir: dataDir, randomDelay: flagRandomDelay}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/agile/1.0/sprint/{id}/issue", srv.sprintIssues)
	mux.HandleFunc("GET /rest/api/2/issue/{key}", srv.issue)
	mux.HandleFunc("GET /rest/api/2/field", srv.fields)

	addr := ":" + strconv.Itoa(flagPort)
	log.Printf("Fake Jira listening on %s (data-dir: %s)", addr, dataDir)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// fakeJira serves Jira REST lookalike responses from JSON files. Sprint
// issues live in sprint_<id>.json (a JSON array), field metadata in
// fields.json.
type fakeJira struct {
	dataDir     string
	randomDelay bool
}

// sprintIssues serves one page of a sprint's issues with the Agile API
// envelope.
func (f *fakeJira) sprintIssues(w http.ResponseWriter, r *http.Request) {
	f.before(r)

	issues, err := f.loadIssues("sprint_" + r.PathValue("id") + ".json")
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	start, limit := paging(r)
	total := len(issues)
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	writeJSON(w, map[string]any{
		"startAt":    start,
		"maxResults": limit,
		"total":      total,
		"issues":     issues[start:end],
	})
}

// issue serves a single issue, scanning every sprint file for the key.
func (f *fakeJira) issue(w http.ResponseWriter, r *http.Request) {
	f.before(r)

	key := r.PathValue("key")
	files, _ := filepath.Glob(filepath.Join(f.dataDir, "sprint_*.json"))
	for _, file := range files {
		issues, err := f.loadIssues(filepath.Base(file))
		if err != nil {
			continue
		}
		for _, raw := range issues {
			var probe struct {
				Key string `json:"key"`
			}
			if json.Unmarshal(raw, &probe) == nil && probe.Key == key {
				writeRaw(w, raw)
				return
			}
		}
	}
	http.Error(w, fmt.Sprintf(`{"errorMessages":["Issue does not exist: %s"]}`, key), http.StatusNotFound)
}

// fields serves the instance's field metadata.
func (f *fakeJira) fields(w http.ResponseWriter, r *http.Request) {
	f.before(r)

	raw, err := os.ReadFile(filepath.Join(f.dataDir, "fields.json"))
	if err != nil {
		http.Error(w, "mock data not found: fields.json", http.StatusNotFound)
		return
	}
	writeRaw(w, raw)
}

// loadIssues reads a JSON array of issues from the data dir.
func (f *fakeJira) loadIssues(name string) ([]json.RawMessage, error) {
	raw, err := os.ReadFile(filepath.Join(f.dataDir, name))
	if err != nil {
		return nil, fmt.Errorf("mock data not found: %s", name)
	}
	var issues []json.RawMessage
	if err := json.Unmarshal(raw, &issues); err != nil {
		return nil, fmt.Errorf("invalid mock JSON in %s: %w", name, err)
	}
	return issues, nil
}

// before applies the optional delay and logs the request with the
// Authorization header redacted.
func (f *fakeJira) before(r *http.Request) {
	if f.randomDelay {
		time.Sleep(time.Duration(200+rand.Intn(800)) * time.Millisecond)
	}
	auth := "-"
	if r.Header.Get("Authorization") != "" {
		auth = "<redacted>"
	}
	log.Printf("REQ %s %s?%s auth=%s", r.Method, r.URL.Path, r.URL.RawQuery, auth)
}

// paging extracts startAt/maxResults with Jira's defaults.
func paging(r *http.Request) (start, limit int) {
	limit = 50
	if v := r.URL.Query().Get("startAt"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			start = n
		}
	}
	if v := r.URL.Query().Get("maxResults"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return start, limit
}

// writeJSON marshals payload and writes it as a JSON response.
func writeJSON(w http.ResponseWriter, payload any) {
	b, _ := json.Marshal(payload)
	writeRaw(w, b)
}

// writeRaw writes raw JSON bytes with the proper content type.
func writeRaw(w http.ResponseWriter, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
