package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/vod-trigger/internal"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type countingDispatcher struct {
	urls []string
}

func (d *countingDispatcher) Dispatch(_ context.Context, signedURL string) (*internal.TranscodeResponse, error) {
	d.urls = append(d.urls, signedURL)
	return &internal.TranscodeResponse{Code: 0, CodeDesc: "Success"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *countingDispatcher) {
	t.Helper()
	signer, err := internal.NewSigner(internal.DefaultAPIEndpoint)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	cfg := &internal.Config{
		Server:      &internal.ServerConfig{Port: 8080},
		Credentials: &internal.CredentialsConfig{SecretID: "id", SecretKey: "key"},
		Output:      &internal.OutputConfig{Bucket: "out"},
		Definitions: []int{20},
	}
	registry := prometheus.NewRegistry()
	metrics := internal.NewMetrics(registry)
	dispatcher := &countingDispatcher{}
	router := internal.NewRouter(cfg, signer, dispatcher, zap.NewNop(), internal.WithMetrics(metrics))
	server := NewServer(router, internal.MustLoadAPI(), zap.NewNop())

	ts := httptest.NewServer(server.Handler(registry))
	t.Cleanup(ts.Close)
	return ts, dispatcher
}

const uploadBatch = `{
  "Records": [
    {
      "event": {"eventName": "cos:ObjectCreated:Put", "eventVersion": "1.0", "eventSource": "qcs::cos"},
      "cos": {
        "cosSchemaVersion": "1.0",
        "cosBucket": {"name": "in", "region": "gz", "appid": "1000"},
        "cosObject": {"key": "/1000/in/videos/clip.mp4", "meta": {"Content-Type": "video/mp4"}}
      }
    }
  ]
}`

func TestServer(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()

	post := func(url, body string) (*http.Response, []byte) {
		resp, err := http.Post(url+"/events", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("failed to post events: %v", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read response: %v", err)
		}
		return resp, data
	}

	e.Run("Accepted", func(e exam.E) {
		ts, dispatcher := newTestServer(t)
		resp, body := post(ts.URL, uploadBatch)
		exam.Equal(e, env, http.StatusOK, resp.StatusCode)
		exam.Equal(e, env, 1, len(dispatcher.urls))

		var accepted AcceptedResponse
		exam.Equal(e, env, true, json.Unmarshal(body, &accepted) == nil)
		exam.Equal(e, env, false, accepted.RequestID == uuid.Nil)
	})

	badRequests := []struct {
		loc      exam.Loc
		name     string
		body     string
		wantCode string
	}{
		{loc: exam.Here(), name: "Not JSON", body: "Records", wantCode: "INVALID_JSON"},
		{loc: exam.Here(), name: "Missing Records", body: `{"records":[]}`, wantCode: "INVALID_BATCH"},
		{loc: exam.Here(), name: "Records not an array", body: `{"Records":{}}`, wantCode: "INVALID_BATCH"},
	}
	for _, tt := range badRequests {
		e.Run(tt.name, func(e exam.E) {
			e.Log("Running test at", tt.loc)
			ts, dispatcher := newTestServer(t)
			resp, body := post(ts.URL, tt.body)
			exam.Equal(e, env, http.StatusBadRequest, resp.StatusCode)
			exam.Equal(e, env, 0, len(dispatcher.urls))

			var got ErrorResponse
			exam.Equal(e, env, true, json.Unmarshal(body, &got) == nil)
			exam.Equal(e, env, tt.wantCode, got.Code)
		})
	}

	e.Run("MalformedRecordSkipped", func(e exam.E) {
		ts, dispatcher := newTestServer(t)
		body := `{"Records":[
			{"event":{"eventName":"cos:ObjectCreated:Put"},"cos":{"cosBucket":{"name":7}}},
			7,
			{
				"event": {"eventName": "cos:ObjectCreated:Put"},
				"cos": {
					"cosBucket": {"name": "in", "region": "gz", "appid": "1000"},
					"cosObject": {"key": "/1000/in/videos/clip.mp4", "meta": {"Content-Type": "video/mp4"}}
				}
			}
		]}`
		resp, _ := post(ts.URL, body)
		exam.Equal(e, env, http.StatusOK, resp.StatusCode)
		exam.Equal(e, env, 1, len(dispatcher.urls))

		metrics, err := http.Get(ts.URL + "/metrics")
		exam.Equal(e, env, true, err == nil)
		defer metrics.Body.Close()
		text, err := io.ReadAll(metrics.Body)
		exam.Equal(e, env, true, err == nil)
		exam.Equal(e, env, true, strings.Contains(string(text), `vodtrigger_records_total{result="malformed"} 2`))
	})

	e.Run("Health", func(e exam.E) {
		ts, _ := newTestServer(t)
		resp, err := http.Get(ts.URL + "/healthz")
		exam.Equal(e, env, true, err == nil)
		defer resp.Body.Close()
		exam.Equal(e, env, http.StatusOK, resp.StatusCode)
	})

	e.Run("Metrics", func(e exam.E) {
		ts, _ := newTestServer(t)
		post(ts.URL, uploadBatch)

		resp, err := http.Get(ts.URL + "/metrics")
		exam.Equal(e, env, true, err == nil)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		exam.Equal(e, env, true, err == nil)
		exam.Equal(e, env, true, strings.Contains(string(body), `vodtrigger_records_total{result="dispatched"} 1`))
	})

	e.Run("WrongMethod", func(e exam.E) {
		ts, _ := newTestServer(t)
		resp, err := http.Get(ts.URL + "/events")
		exam.Equal(e, env, true, err == nil)
		defer resp.Body.Close()
		exam.Equal(e, env, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
