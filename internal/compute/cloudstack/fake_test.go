package cloudstack

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/job"
)

const (
	testAPIKey = "test-api-key"
	testSecret = "test-secret"
)

var fastPoll = job.PollConfig{
	MaxDuration: time.Second,
	Period:      time.Millisecond,
	MaxPeriod:   5 * time.Millisecond,
	Multiplier:  1.5,
}

type handlerFunc func(q url.Values) (int, interface{})

// fakeCloud is an in-memory CloudStack endpoint. It checks every request
// signature and serves queryAsyncJobResult from scripted job states.
type fakeCloud struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	calls    []string
	handlers map[string]handlerFunc
	jobs     map[string][]asyncJobResponse
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()
	f := &fakeCloud{
		t:        t,
		handlers: make(map[string]handlerFunc),
		jobs:     make(map[string][]asyncJobResponse),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCloud) serve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.RawQuery
	idx := strings.LastIndex(raw, "&signature=")
	if idx < 0 {
		http.Error(w, "missing signature", http.StatusUnauthorized)
		return
	}
	got, err := url.QueryUnescape(raw[idx+len("&signature="):])
	if err != nil || got != sign(raw[:idx], testSecret) {
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	command := q.Get("command")
	if q.Get("apiKey") != testAPIKey || q.Get("response") != "json" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, command)
	handler, ok := f.handlers[command]
	f.mu.Unlock()

	var status int
	var body interface{}
	switch {
	case command == "queryAsyncJobResult":
		status, body = f.queryJob(q.Get("jobid"))
	case ok:
		status, body = handler(q)
	default:
		status, body = apiError(http.StatusBadRequest, 432, "unsupported command")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	envelope := map[string]interface{}{strings.ToLower(command) + "response": body}
	assert.NoError(f.t, json.NewEncoder(w).Encode(envelope))
}

func (f *fakeCloud) queryJob(jobID string) (int, interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	states, ok := f.jobs[jobID]
	if !ok || len(states) == 0 {
		return apiError(http.StatusNotFound, 530, fmt.Sprintf("Unable to find job %s", jobID))
	}
	state := states[0]
	if len(states) > 1 {
		f.jobs[jobID] = states[1:]
	}
	state.JobID = jobID
	return http.StatusOK, state
}

func (f *fakeCloud) on(command string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[command] = h
}

// job scripts the states returned for jobID, repeating the last one
func (f *fakeCloud) job(jobID string, states ...asyncJobResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = states
}

func (f *fakeCloud) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == command {
			n++
		}
	}
	return n
}

// mutations returns the commands that were neither lists nor job queries
func (f *fakeCloud) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "list") || c == "queryAsyncJobResult" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *fakeCloud) client() *Client {
	f.t.Helper()
	c, err := NewClient(&config.CloudStackConfig{
		APIURL:    f.server.URL + "/client/api",
		APIKey:    testAPIKey,
		SecretKey: testSecret,
	}, WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(f.t, err)
	return c
}

func (f *fakeCloud) adapter() *Adapter {
	return NewAdapter(f.client(), job.WithPollConfig(fastPoll))
}

func apiError(status, code int, text string) (int, interface{}) {
	return status, map[string]interface{}{
		"errorcode":   code,
		"cserrorcode": 9999,
		"errortext":   text,
	}
}

func asyncAccepted(id, jobID string) (int, interface{}) {
	return http.StatusOK, map[string]string{"id": id, "jobid": jobID}
}

func running() asyncJobResponse {
	return asyncJobResponse{JobStatus: jobStatusPending, Cmd: "test"}
}

func succeeded(result string) asyncJobResponse {
	return asyncJobResponse{
		JobStatus:     jobStatusSucceeded,
		JobResultType: "object",
		JobResult:     json.RawMessage(result),
		Cmd:           "test",
	}
}

func failed(code int, text string) asyncJobResponse {
	return asyncJobResponse{
		JobStatus:     jobStatusFailed,
		JobResultCode: 530,
		JobResultType: "object",
		JobResult:     json.RawMessage(fmt.Sprintf(`{"errorcode":%d,"errortext":%q}`, code, text)),
		Cmd:           "test",
	}
}
