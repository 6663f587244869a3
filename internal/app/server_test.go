package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newTestServer(t *testing.T, client *stubClient, rps float64, burst int) *httptest.Server {
	t.Helper()
	a, err := NewWithClient(context.Background(), testConfig(t), client)
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	t.Cleanup(a.Close)
	srv := httptest.NewServer(NewHandler(a.Engine(), rps, burst))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, session, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_SuggestMintsSessionAndCaches(t *testing.T) {
	client := &stubClient{content: "1. a\n2. b\n3. c"}
	srv := newTestServer(t, client, 0, 0)
	body := `{"platform":"twitter","user_id":"u123","comment":"ありがとう"}`

	resp := do(t, http.MethodPost, srv.URL+"/api/suggest", "", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	sid := resp.Header.Get(SessionHeader)
	if _, err := uuid.Parse(sid); err != nil {
		t.Fatalf("minted session %q: %v", sid, err)
	}
	var out suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Cached || len(out.Candidates) != 3 || out.Emotion != "joy" {
		t.Fatalf("first response=%+v", out)
	}
	if out.DisplayName != "u123..." {
		t.Fatalf("display name=%q", out.DisplayName)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/suggest", sid, body)
	out = suggestResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Cached || client.Calls() != 1 {
		t.Fatalf("cached=%v calls=%d", out.Cached, client.Calls())
	}

	// Ending the session drops its cache.
	if resp := do(t, http.MethodDelete, srv.URL+"/api/session", sid, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("end session status=%d", resp.StatusCode)
	}
	do(t, http.MethodPost, srv.URL+"/api/suggest", sid, body)
	if client.Calls() != 2 {
		t.Fatalf("calls after end session=%d, want 2", client.Calls())
	}
}

func TestServer_SuggestErrors(t *testing.T) {
	client := &stubClient{err: errors.New("backend down")}
	srv := newTestServer(t, client, 0, 0)
	cases := []struct {
		name    string
		session string
		body    string
		want    int
	}{
		{"bad json", "", "{", http.StatusBadRequest},
		{"unknown platform", "", `{"platform":"myspace","user_id":"u1","comment":"x"}`, http.StatusBadRequest},
		{"missing user", "", `{"platform":"twitter","comment":"x"}`, http.StatusBadRequest},
		{"empty comment", "", `{"platform":"twitter","user_id":"u1","comment":"  "}`, http.StatusBadRequest},
		{"bad session", "not-a-uuid", `{"platform":"twitter","user_id":"u1","comment":"x"}`, http.StatusBadRequest},
		{"completion failure", "", `{"platform":"twitter","user_id":"u1","comment":"x"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		resp := do(t, http.MethodPost, srv.URL+"/api/suggest", tc.session, tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status=%d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestServer_GenericAllowsAnonymousComment(t *testing.T) {
	client := &stubClient{content: "- こんにちは"}
	srv := newTestServer(t, client, 0, 0)
	resp := do(t, http.MethodPost, srv.URL+"/api/suggest", "", `{"platform":"generic","comment":"はじめまして"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Exemplars != 0 || len(out.Candidates) != 1 || client.Calls() != 1 {
		t.Fatalf("response=%+v calls=%d", out, client.Calls())
	}
}

func TestServer_UsersRenameProfile(t *testing.T) {
	srv := newTestServer(t, &stubClient{}, 0, 0)

	resp := do(t, http.MethodPut, srv.URL+"/api/users/u123/name", "", `{"name":"山田"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename status=%d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/users/u123/name", "", `{"name":" "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank rename status=%d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/users?platform=twitter", "", "")
	var users []userResponse
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 || users[0].UserID != "u123" || users[0].DisplayName != "山田" || users[0].Comments != 2 {
		t.Fatalf("users=%+v", users)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/profile?platform=twitter", "", "")
	var prof struct {
		TopEmojis []string `json:"top_emojis"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status=%d", resp.StatusCode)
	}

	if resp := do(t, http.MethodGet, srv.URL+"/api/users?platform=", "", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing platform status=%d", resp.StatusCode)
	}
}

func TestServer_RateLimited(t *testing.T) {
	srv := newTestServer(t, &stubClient{}, 0.001, 1)
	if resp := do(t, http.MethodGet, srv.URL+"/api/users?platform=twitter", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("first status=%d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/users?platform=twitter", "", ""); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status=%d, want 429", resp.StatusCode)
	}
	// Health is outside the limited API.
	if resp := do(t, http.MethodGet, srv.URL+"/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
}
