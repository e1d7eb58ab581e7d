package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initialEvent() types.AlertEvent {
	return types.AlertEvent{
		ID:         "inc-1",
		Phase:      types.PhaseInitial,
		Hostname:   "web-01",
		Timestamp:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		CheckCount: 3,
		Resources: []types.ResourceReading{
			{Kind: types.CPU, Value: 96, Threshold: 90, Status: types.StatusBreaching},
		},
		Snapshot: &types.ResourceSnapshot{CPU: 96, Memory: 40, Swap: types.Unavailable, Disk: 70},
	}
}

type countingDeliverer struct {
	calls int32
	fail  map[string]error
}

func (d *countingDeliverer) Deliver(_ context.Context, url string, _ []byte) error {
	atomic.AddInt32(&d.calls, 1)
	return d.fail[url]
}

func TestNotify_ChannelIsolation(t *testing.T) {
	var okHits int32
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&okHits, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()

	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusForbidden)
	}))
	defer badSrv.Close()

	channels := NewChannels(badSrv.URL, okSrv.URL, "")
	n := NewNotifier(channels, NewHTTPDeliverer(nil), zerolog.Nop())

	results := n.Notify(context.Background(), initialEvent())
	require.Len(t, results, 2)

	assert.Equal(t, "feishu", results[0].Channel)
	assert.False(t, results[0].Success)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "403")

	assert.Equal(t, "slack", results[1].Channel)
	assert.True(t, results[1].Success)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&okHits))
}

func TestNotify_ConnectionErrorDoesNotStopOthers(t *testing.T) {
	d := &countingDeliverer{fail: map[string]error{"http://a": errors.New("connection refused")}}
	n := NewNotifier([]Channel{
		{Name: "a", URL: "http://a", Renderer: MattermostRenderer{}},
		{Name: "b", URL: "http://b", Renderer: MattermostRenderer{}},
	}, d, zerolog.Nop())

	results := n.Notify(context.Background(), initialEvent())
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, int32(2), d.calls)
}

type panickingRenderer struct{}

func (panickingRenderer) Name() string { return "boom" }
func (panickingRenderer) Render(types.AlertEvent) ([]byte, error) {
	panic("renderer bug")
}

func TestNotify_PanicInOneChannelIsContained(t *testing.T) {
	d := &countingDeliverer{}
	n := NewNotifier([]Channel{
		{Name: "boom", URL: "http://boom", Renderer: panickingRenderer{}},
		{Name: "ok", URL: "http://ok", Renderer: SlackRenderer{}},
	}, d, zerolog.Nop())

	results := n.Notify(context.Background(), initialEvent())
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.True(t, results[1].Success)
}

func TestNotify_DryRunNeverDelivers(t *testing.T) {
	d := &countingDeliverer{}
	n := NewNotifier(NewChannels("http://f", "http://s", "http://m"), d, zerolog.Nop())
	n.SetDryRun(true)

	results := n.Notify(context.Background(), initialEvent())
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.True(t, r.DryRun)
		assert.NotEmpty(t, r.Payload)
	}
	assert.Equal(t, int32(0), d.calls)
}

func TestNotify_NoChannelsWarns(t *testing.T) {
	var buf bytes.Buffer
	d := &countingDeliverer{}
	n := NewNotifier(NewChannels("", "", ""), d, zerolog.New(&buf))

	results := n.Notify(context.Background(), initialEvent())
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), d.calls)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Empty(t, n.Channels())
}

func TestHTTPDeliverer_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
	}))
	defer srv.Close()

	err := NewHTTPDeliverer(srv.Client()).Deliver(context.Background(), srv.URL, []byte(`{}`))
	assert.Error(t, err)
}

func TestHTTPDeliverer_PostsBody(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewHTTPDeliverer(nil).Deliver(context.Background(), srv.URL, []byte(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", got["text"])
}
