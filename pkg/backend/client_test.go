package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/middleware/requestid"
)

type recordingObserver struct {
	calls []int
}

func (r *recordingObserver) ObserveBackendCall(_, _ string, status int, _ time.Duration) {
	r.calls = append(r.calls, status)
}

func newFakeBackend(t *testing.T, register func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientForwardsQueryTokenAndRequestID(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
		gotReqID string
	)
	srv := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/api/organizations", func(c *gin.Context) {
			gotQuery = c.Request.URL.Query()
			gotAuth = c.GetHeader("Authorization")
			gotReqID = c.GetHeader(requestid.HeaderKey)
			c.JSON(http.StatusOK, gin.H{"data": []gin.H{}, "totalCount": 0})
		})
	})

	obs := &recordingObserver{}
	client, err := NewClient(srv.URL+"/api/", time.Second, obs, nil)
	require.NoError(t, err)

	ctx := requestid.WithContext(context.Background(), "req-42")
	body, err := client.Do(ctx, Request{
		Method:     http.MethodGet,
		Path:       "/organizations",
		Query:      url.Values{"page": {"2"}, "role": {"charity"}},
		Token:      "tok",
		Collection: "organizations",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"totalCount":0}`, string(body))
	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, "charity", gotQuery.Get("role"))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "req-42", gotReqID)
	assert.Equal(t, []int{http.StatusOK}, obs.calls)
}

func TestClientGeneratesRequestIDWhenMissing(t *testing.T) {
	var gotReqID string
	srv := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) {
			gotReqID = c.GetHeader(requestid.HeaderKey)
			c.Status(http.StatusOK)
		})
	})

	client, err := NewClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "ping"})
	require.NoError(t, err)
	assert.Len(t, gotReqID, 36)
}

func TestClientMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status  int
		body    string
		code    string
		message string
	}{
		{http.StatusBadRequest, `{"message":"Email already registered"}`, "SERVER_VALIDATION", "Email already registered"},
		{http.StatusUnprocessableEntity, `{"error":{"message":"bad date"}}`, "SERVER_VALIDATION", "bad date"},
		{http.StatusUnauthorized, `{}`, "UNAUTHORIZED", appErrors.ErrUnauthorized.Message},
		{http.StatusForbidden, `{"error":"not yours"}`, "FORBIDDEN", "not yours"},
		{http.StatusNotFound, `not json`, "NOT_FOUND", appErrors.ErrNotFound.Message},
		{http.StatusConflict, `{}`, "CONFLICT", appErrors.ErrConflict.Message},
		{http.StatusBadGateway, `{}`, "UPSTREAM_ERROR", appErrors.ErrUpstream.Message},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.code, func(t *testing.T) {
			srv := newFakeBackend(t, func(r *gin.Engine) {
				r.PATCH("/users/u1", func(c *gin.Context) {
					c.Data(tc.status, "application/json", []byte(tc.body))
				})
			})
			client, err := NewClient(srv.URL, time.Second, nil, nil)
			require.NoError(t, err)

			_, err = client.Do(context.Background(), Request{Method: http.MethodPatch, Path: "/users/u1", JSONBody: map[string]string{"status": "active"}})
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestClientNetworkAndTimeoutErrors(t *testing.T) {
	srv := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/slow", func(c *gin.Context) {
			time.Sleep(200 * time.Millisecond)
			c.Status(http.StatusOK)
		})
	})

	client, err := NewClient(srv.URL, 20*time.Millisecond, nil, nil)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	assert.True(t, appErrors.HasCode(err, "UPSTREAM_TIMEOUT"))

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	client, err = NewClient(closed.URL, time.Second, nil, nil)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	assert.True(t, appErrors.HasCode(err, "NETWORK_ERROR"))
}

func TestClientSendsMultipart(t *testing.T) {
	var (
		title    string
		filename string
		content  string
	)
	srv := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/news", func(c *gin.Context) {
			title = c.PostForm("title")
			fh, err := c.FormFile("image")
			if err == nil {
				filename = fh.Filename
				f, _ := fh.Open()
				raw, _ := io.ReadAll(f)
				content = string(raw)
			}
			c.JSON(http.StatusCreated, gin.H{"success": true})
		})
	})

	client, err := NewClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/news",
		Multipart: &Multipart{
			Fields: map[string]string{"title": "Flood relief"},
			File:   &FileUpload{Filename: "cover.png", ContentType: "image/png", Data: []byte("png-bytes")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Flood relief", title)
	assert.Equal(t, "cover.png", filename)
	assert.Equal(t, "png-bytes", content)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.org", time.Second, nil, nil)
	assert.Error(t, err)
}
