// Package backend is the HTTP transport to the CDRP REST service. It maps
// transport and status failures onto the gateway's typed errors; decoding of
// the response envelopes happens in the repositories built on top of it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/logger"
	"github.com/cdrp/console-gateway/pkg/middleware/requestid"
)

const maxResponseBytes = 8 << 20

// Observer receives timing for every backend call.
type Observer interface {
	ObserveBackendCall(method, collection string, status int, duration time.Duration)
}

// FileUpload is an image attached to a create or update request.
type FileUpload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Request describes one call against the backend. Exactly one of JSONBody and
// Multipart may be set.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Token      string
	Collection string
	JSONBody   interface{}
	Multipart  *Multipart
}

// Multipart carries form fields and an optional file.
type Multipart struct {
	Fields map[string]string
	File   *FileUpload
}

// Client performs requests against the backend base URL.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	observer Observer
	log      *zap.Logger
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, observer Observer, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http(s), got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: timeout},
		observer: observer,
		log:      log,
	}, nil
}

// Do sends req and returns the raw body of a 2xx response.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build backend request")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(req, 0, start)
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(req, resp.StatusCode, start)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		mapped := statusError(resp.StatusCode, body)
		logger.ForContext(ctx, c.log).Debug("backend call failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", mapped.Code),
		)
		return nil, mapped
	}

	return body, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Multipart != nil:
		buf, ct, err := encodeMultipart(req.Multipart)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.JSONBody != nil:
		raw, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	httpReq.Header.Set(requestid.HeaderKey, reqID)
	return httpReq, nil
}

func (c *Client) observe(req Request, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackendCall(req.Method, req.Collection, status, time.Since(start))
}

func encodeMultipart(m *Multipart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for key, value := range m.Fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write multipart field %s: %w", key, err)
		}
	}
	if f := m.File; f != nil {
		field := f.Field
		if field == "" {
			field = "image"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header.Set("Content-Type", ct)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create multipart file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write multipart file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func transportError(ctx context.Context, err error) *appErrors.Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return appErrors.Wrap(err, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrUpstreamTimeout.Status, appErrors.ErrUpstreamTimeout.Message)
	}
	if ctx.Err() != nil {
		return appErrors.Wrap(ctx.Err(), appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, "request cancelled")
	}
	return appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, appErrors.ErrNetwork.Message)
}

// errorBody covers the shapes the backend uses for failures:
// {"message": "..."}, {"error": "..."} and {"error": {"message": "..."}}.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func backendMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	if len(eb.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(eb.Error, &s); err == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}

func statusError(status int, body []byte) *appErrors.Error {
	msg := backendMessage(body)
	var base *appErrors.Error
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		base = appErrors.ErrServerValidation
	case status == http.StatusUnauthorized:
		base = appErrors.ErrUnauthorized
	case status == http.StatusForbidden:
		base = appErrors.ErrForbidden
	case status == http.StatusNotFound:
		base = appErrors.ErrNotFound
	case status == http.StatusConflict:
		base = appErrors.ErrConflict
	default:
		base = appErrors.ErrUpstream
	}
	return appErrors.Clone(base, msg)
}
