package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/inklift/inklift/pkg/region"
)

// Client is the consumed provider boundary: one method per remote
// concept. Implementations must be safe for concurrent use.
type Client interface {
	// SubmitJob asks the provider to run a stored workflow. An empty
	// override list runs the workflow verbatim.
	SubmitJob(ctx context.Context, reg region.Region, workflowID string, overrides []FieldOverride) (*SubmitResult, error)

	// QueryStatus returns the provider's raw status vocabulary for a task.
	QueryStatus(ctx context.Context, reg region.Region, taskID string) (*StatusResult, error)

	// FetchOutputs returns the raw output payload. The shape varies by
	// workflow; normalization is the caller's concern.
	FetchOutputs(ctx context.Context, reg region.Region, taskID string) (json.RawMessage, error)

	// CancelJob requests best-effort cancellation of a queued or running task.
	CancelJob(ctx context.Context, reg region.Region, taskID string) error

	// UploadFile pushes bytes through the provider's direct upload
	// endpoint and returns the remote file name.
	UploadFile(ctx context.Context, reg region.Region, fileName string, data []byte) (string, error)
}

// HTTPClient implements Client against the provider's JSON API.
type HTTPClient struct {
	apiKey string
	client *http.Client
	logger *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient substitutes the underlying http.Client. Per-attempt
// timeouts are driven by request contexts, so the default client carries
// no global timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates a provider client. apiKey must be non-empty.
func NewHTTPClient(apiKey string, opts ...Option) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider api key is required")
	}
	h := &HTTPClient{
		apiKey: apiKey,
		client: &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// SubmitJob implements Client.
func (h *HTTPClient) SubmitJob(ctx context.Context, reg region.Region, workflowID string, overrides []FieldOverride) (*SubmitResult, error) {
	body := map[string]any{
		"apiKey":     h.apiKey,
		"workflowId": workflowID,
	}
	// Simple mode omits the override list entirely.
	if len(overrides) > 0 {
		body["nodeInfoList"] = overrides
	}

	var data submitData
	if err := h.postJSON(ctx, reg, "/task/openapi/create", body, &data); err != nil {
		return nil, h.wrapErr("SubmitJob", reg, "", err)
	}

	return &SubmitResult{
		TaskID:      data.TaskID,
		RawStatus:   data.TaskStatus,
		Diagnostics: data.Diagnostics,
	}, nil
}

// QueryStatus implements Client.
func (h *HTTPClient) QueryStatus(ctx context.Context, reg region.Region, taskID string) (*StatusResult, error) {
	body := map[string]any{"apiKey": h.apiKey, "taskId": taskID}

	var data statusData
	if err := h.postJSON(ctx, reg, "/task/openapi/status", body, &data); err != nil {
		return nil, h.wrapErr("QueryStatus", reg, taskID, err)
	}
	return &StatusResult{RawStatus: data.TaskStatus, Progress: data.Progress}, nil
}

// FetchOutputs implements Client.
func (h *HTTPClient) FetchOutputs(ctx context.Context, reg region.Region, taskID string) (json.RawMessage, error) {
	body := map[string]any{"apiKey": h.apiKey, "taskId": taskID}

	var data json.RawMessage
	if err := h.postJSON(ctx, reg, "/task/openapi/outputs", body, &data); err != nil {
		return nil, h.wrapErr("FetchOutputs", reg, taskID, err)
	}
	return data, nil
}

// CancelJob implements Client.
func (h *HTTPClient) CancelJob(ctx context.Context, reg region.Region, taskID string) error {
	body := map[string]any{"apiKey": h.apiKey, "taskId": taskID}

	if err := h.postJSON(ctx, reg, "/task/openapi/cancel", body, nil); err != nil {
		return h.wrapErr("CancelJob", reg, taskID, err)
	}
	return nil
}

// UploadFile implements Client. The provider hard-rejects large direct
// uploads; size policy is enforced upstream in pkg/upload.
func (h *HTTPClient) UploadFile(ctx context.Context, reg region.Region, fileName string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("apiKey", h.apiKey); err != nil {
		return "", h.wrapErr("UploadFile", reg, "", err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", h.wrapErr("UploadFile", reg, "", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", h.wrapErr("UploadFile", reg, "", err)
	}
	if err := mw.Close(); err != nil {
		return "", h.wrapErr("UploadFile", reg, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.APIBaseURL+"/task/openapi/upload", &buf)
	if err != nil {
		return "", h.wrapErr("UploadFile", reg, "", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Host = reg.HostHeader

	var out uploadData
	if err := h.do(req, &out); err != nil {
		return "", h.wrapErr("UploadFile", reg, "", err)
	}
	return out.FileName, nil
}

// postJSON sends a JSON POST to path and decodes the envelope data into out.
func (h *HTTPClient) postJSON(ctx context.Context, reg region.Region, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Host = reg.HostHeader

	return h.do(req, out)
}

// do executes a request, applies the status and business-code taxonomy,
// and decodes the envelope data into out when out is non-nil.
func (h *HTTPClient) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		h.logger.Debug("provider request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", b))
		return fmt.Errorf("%w: HTTP %d", err, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	if err := classifyCode(env.Code, env.Msg); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (h *HTTPClient) wrapErr(op string, reg region.Region, taskID string, err error) error {
	return &ProviderError{Op: op, Region: reg.ID, TaskID: taskID, Err: err}
}
