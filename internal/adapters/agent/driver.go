// Package agent implements the application driver against a local
// browser-automation sidecar. The sidecar owns the browser; this adapter
// owns the submission protocol and failure classification.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

const (
	applyPath            = "/v1/apply"
	maxResponseBodyBytes = 4 * 1024 // sidecar verdicts are small; anything bigger is noise
	maxErrorExcerptBytes = 256
)

// Sidecar verdict statuses.
const (
	statusApplied  = "applied"
	statusRejected = "rejected"
)

// DriverOptions configures the agent application driver.
type DriverOptions struct {
	// BaseURL is the sidecar endpoint. Required.
	BaseURL string

	// Token authenticates requests to the sidecar. Optional.
	Token string
	// Timeout bounds one application submission end to end. Optional,
	// defaults to 3m. Ignored when HTTPClient is set.
	Timeout time.Duration
	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
	// Logger is used for adapter logging. Optional.
	Logger *slog.Logger
}

// Driver submits applications by POSTing the record and profile to the
// sidecar and classifying its verdict through the app error taxonomy.
type Driver struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewDriver creates an agent application driver.
func NewDriver(opts DriverOptions) (*Driver, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("BaseURL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Driver{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    hc,
		logger:  logger,
	}, nil
}

// applyRequest is the wire payload the sidecar receives.
type applyRequest struct {
	Record  *model.JobRecord       `json:"record"`
	Profile *model.PersonalProfile `json:"profile"`
}

// applyResponse is the sidecar's verdict on one submission.
type applyResponse struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Confirmation  string `json:"confirmation,omitempty"`
	ResumeVersion string `json:"resume_version,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Apply submits one application. Timeouts, transport errors and 5xx answers
// come back recoverable; 404/410 and explicit rejections come back permanent.
func (d *Driver) Apply(ctx context.Context, rec *model.JobRecord, profile *model.PersonalProfile) (*model.ApplyResult, error) {
	if rec == nil {
		return nil, apperr.Validation("nil record")
	}

	body, err := json.Marshal(applyRequest{Record: rec, Profile: profile})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "encode apply request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+applyPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "build apply request")
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	d.logger.DebugContext(ctx, "submitting application",
		"record_id", rec.ID,
		"title", rec.Title,
		"company", rec.Company,
	)

	resp, err := d.http.Do(req)
	if err != nil {
		// Timeouts and transport errors are worth another attempt.
		return nil, apperr.Wrap(err, apperr.CodeApplyRecoverable, "agent request")
	}
	payload, readErr := readResponseBody(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		d.logger.WarnContext(ctx, "close agent response body", "error", closeErr)
	}
	if readErr != nil {
		return nil, apperr.Wrap(readErr, apperr.CodeApplyRecoverable, "read agent response")
	}

	return d.classify(rec, resp.StatusCode, payload)
}

func (d *Driver) classify(rec *model.JobRecord, status int, payload []byte) (*model.ApplyResult, error) {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return nil, apperr.ApplyPermanentf("posting gone: agent returned %d", status)
	case status < 200 || status >= 300:
		return nil, apperr.ApplyRecoverablef("agent returned %d: %s", status, bodyExcerpt(payload))
	}

	var verdict applyResponse
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeApplyRecoverable, "decode agent response")
	}
	switch verdict.Status {
	case statusApplied:
		return &model.ApplyResult{
			RecordID:      rec.ID,
			ResumeVersion: verdict.ResumeVersion,
			Confirmation:  verdict.Confirmation,
			Message:       verdict.Message,
			CompletedAt:   time.Now().UTC(),
		}, nil
	case statusRejected:
		reason := verdict.Reason
		if reason == "" {
			reason = "no reason given"
		}
		return nil, apperr.ApplyPermanentf("agent rejected application: %s", reason)
	default:
		return nil, apperr.ApplyRecoverablef("agent returned unknown status %q", verdict.Status)
	}
}

// readResponseBody reads up to the cap and drains the rest so the connection
// can be reused.
func readResponseBody(body io.Reader) ([]byte, error) {
	limited := io.LimitReader(body, maxResponseBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxResponseBodyBytes {
		data = data[:maxResponseBodyBytes]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil {
			return data, drainErr
		}
	}
	return data, nil
}

func bodyExcerpt(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if len(s) > maxErrorExcerptBytes {
		s = s[:maxErrorExcerptBytes]
	}
	return s
}
