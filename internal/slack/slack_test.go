package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-snapshot/internal/logging"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Options{Channel: "#reviews"}, logging.Discard())
	assert.Error(t, err)

	_, err = NewClient(Options{Token: "xoxb"}, logging.Discard())
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		in   string
		want string
	}{
		{
			name: "bold converted",
			opts: Options{Token: "x", Channel: "c"},
			in:   "📘 **GitHub PR Daily Snapshot (2026-10-19)**\n- Raised: `1`",
			want: "📘 *GitHub PR Daily Snapshot (2026-10-19)*\n- Raised: `1`",
		},
		{
			name: "team group mention",
			opts: Options{Token: "x", Channel: "c", TeamGroup: "S123"},
			in:   "report",
			want: "report\n\n<!subteam^S123> Please make sure to review these pull requests!",
		},
		{
			name: "user mentions win over team group",
			opts: Options{Token: "x", Channel: "c", TeamGroup: "S123", MentionUsers: []string{"U1", " ", "U2"}},
			in:   "report",
			want: "report\n\n<@U1> <@U2> Please make sure to review these pull requests!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts, logging.Discard())
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.FormatMessage(tt.in))
		})
	}
}

func TestSendPostsToChannel(t *testing.T) {
	var channel, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		channel = r.FormValue("channel")
		text = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.0"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{Token: "xoxb-test", Channel: "#reviews", APIURL: srv.URL + "/"}, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, client.Send(context.Background(), "**hi**"))
	assert.Equal(t, "#reviews", channel)
	assert.Equal(t, "*hi*", text)
}

func TestSendSurfacesSlackErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{Token: "xoxb-test", Channel: "#missing", APIURL: srv.URL + "/"}, logging.Discard())
	require.NoError(t, err)

	err = client.Send(context.Background(), "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}
