package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-snapshot/internal/logging"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/OPS-1", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "api-token", pass)
		fmt.Fprint(w, `{"key":"OPS-1","fields":{"summary":"Fix login","status":{"name":"In Review"},"labels":["backend"]}}`)
	})
	mux.HandleFunc("/rest/api/2/issue/OPS-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"key":"OPS-2","fields":{"summary":"Upgrade db","status":{"name":"Blocked"}}}`)
	})
	mux.HandleFunc("/rest/api/2/issue/OPS-3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"key":"OPS-3","fields":{"summary":"","status":{"name":"To Do"},"labels":["Paused-by-vendor"]}}`)
	})
	mux.HandleFunc("/rest/api/2/issue/OPS-4", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
	})
	mux.HandleFunc("/rest/api/2/issue/OPS-5", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["boom"]}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{URL: srv.URL, Username: "bot@example.com", APIToken: "api-token"}, logging.Discard())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{URL: "https://jira.example.com", APIToken: "tok"}, logging.Discard())
	assert.Error(t, err)

	_, err = NewClient(Options{URL: "https://jira.example.com", APIToken: "tok", UsePAT: true}, logging.Discard())
	assert.NoError(t, err)
}

func TestFetchTicketInfo(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	info, err := client.FetchTicketInfo(ctx, "OPS-1")
	require.NoError(t, err)
	assert.Equal(t, &TicketInfo{TicketID: "OPS-1", Status: "In Review", Summary: "Fix login"}, info)

	info, err = client.FetchTicketInfo(ctx, "OPS-2")
	require.NoError(t, err)
	assert.True(t, info.IsBlocked, "blocked status")

	info, err = client.FetchTicketInfo(ctx, "OPS-3")
	require.NoError(t, err)
	assert.True(t, info.IsBlocked, "pause label")
	assert.Equal(t, "No Description", info.Summary)

	info, err = client.FetchTicketInfo(ctx, "OPS-4")
	require.NoError(t, err)
	assert.Equal(t, "Not Found", info.Status)
	assert.False(t, info.IsBlocked)

	_, err = client.FetchTicketInfo(ctx, "")
	assert.Error(t, err)
}

func TestFetchTicketsInfoRecordsErrors(t *testing.T) {
	client := newTestClient(t)

	infos := client.FetchTicketsInfo(context.Background(), []string{"OPS-1", "OPS-2", "OPS-2", "", "OPS-5"})

	require.Len(t, infos, 3)
	assert.Equal(t, "Error", infos["OPS-5"].Status)
	assert.Equal(t, map[string]bool{"OPS-2": true}, BlockedTickets(infos))
}
