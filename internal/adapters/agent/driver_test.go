package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
	"github.com/jobtrawl/jobtrawl/internal/testutil"
)

func testProfile() *model.PersonalProfile {
	return &model.PersonalProfile{
		Name:  "Sam Reyes",
		Email: "sam@example.com",
		Resumes: []model.Resume{
			{Version: "backend-v2", FilePath: "/resumes/backend-v2.pdf"},
		},
		DefaultResume: "backend-v2",
	}
}

func newTestDriver(t *testing.T, baseURL string) *Driver {
	t.Helper()
	d, err := NewDriver(DriverOptions{BaseURL: baseURL})
	require.NoError(t, err)
	return d
}

func TestNewDriverValidation(t *testing.T) {
	_, err := NewDriver(DriverOptions{})
	assert.EqualError(t, err, "BaseURL is required")

	d, err := NewDriver(DriverOptions{BaseURL: "http://localhost:8745/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8745", d.baseURL)
}

func TestDriverApplySuccess(t *testing.T) {
	rec := testutil.QueuedRecord("boardfeed", "1001")
	var got applyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/apply", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"applied","confirmation":"c-8841","resume_version":"tailored-v5"}`)
	}))
	defer srv.Close()

	d := newTestDriver(t, srv.URL)
	result, err := d.Apply(context.Background(), rec, testProfile())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, rec.ID, result.RecordID)
	assert.Equal(t, "c-8841", result.Confirmation)
	assert.Equal(t, "tailored-v5", result.ResumeVersion)
	assert.False(t, result.CompletedAt.IsZero())

	require.NotNil(t, got.Record)
	assert.Equal(t, rec.ID, got.Record.ID)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "Sam Reyes", got.Profile.Name)
}

func TestDriverApplySendsToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"status":"applied"}`)
	}))
	defer srv.Close()

	d, err := NewDriver(DriverOptions{BaseURL: srv.URL, Token: "sidecar-secret"})
	require.NoError(t, err)
	_, err = d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sidecar-secret", auth)
}

func TestDriverApplyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"rejected","reason":"position filled"}`)
	}))
	defer srv.Close()

	d := newTestDriver(t, srv.URL)
	result, err := d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperr.IsApplyPermanent(err))
	assert.Contains(t, err.Error(), "position filled")
}

func TestDriverApplyPostingGone(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			d := newTestDriver(t, srv.URL)
			_, err := d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
			require.Error(t, err)
			assert.True(t, apperr.IsApplyPermanent(err))
		})
	}
}

func TestDriverApplyServerErrorIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "browser crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDriver(t, srv.URL)
	_, err := d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
	require.Error(t, err)
	assert.True(t, apperr.IsApplyRecoverable(err))
	assert.Contains(t, err.Error(), "browser crashed")
}

func TestDriverApplyTimeoutIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"status":"applied"}`)
	}))
	defer srv.Close()

	d, err := NewDriver(DriverOptions{
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Timeout: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	_, err = d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
	require.Error(t, err)
	assert.True(t, apperr.IsApplyRecoverable(err))
}

func TestDriverApplyTransportErrorIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from here on

	d := newTestDriver(t, srv.URL)
	_, err := d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
	require.Error(t, err)
	assert.True(t, apperr.IsApplyRecoverable(err))
}

func TestDriverApplyMalformedVerdict(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "browser said what"},
		{"unknown status", `{"status":"maybe"}`},
		{"oversized body", strings.Repeat("x", 8*1024)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			d := newTestDriver(t, srv.URL)
			_, err := d.Apply(context.Background(), testutil.QueuedRecord("boardfeed", "1"), testProfile())
			require.Error(t, err)
			assert.True(t, apperr.IsApplyRecoverable(err), "a garbled verdict is retried, not dropped")
		})
	}
}

func TestDriverApplyNilRecord(t *testing.T) {
	d := newTestDriver(t, "http://localhost:8745")
	_, err := d.Apply(context.Background(), nil, testProfile())
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestReadResponseBodyCapsSize(t *testing.T) {
	payload, err := readResponseBody(strings.NewReader(strings.Repeat("a", 10*1024)))
	require.NoError(t, err)
	assert.Len(t, payload, maxResponseBodyBytes)

	payload, err = readResponseBody(strings.NewReader("short"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(payload))
}
