package famly

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famlysync/internal/testutil"
	"famlysync/pkg/config"
	errs "famlysync/pkg/errors"
	"famlysync/pkg/logger"
	"famlysync/pkg/retry"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(t *testing.T, baseURL string, log logger.Logger) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.APIBaseURL = baseURL
	return NewClient(cfg, "secret", log)
}

func TestListChildren(t *testing.T) {
	fake := testutil.NewFakeFamly("secret")
	defer fake.Close()
	fake.AddChild("c-1", "Ada")
	fake.AddChild("c-2", "Grace")

	client := newTestClient(t, fake.URL(), logger.NewTestLogger())
	children, err := client.ListChildren(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []Child{{ID: "c-1", Name: "Ada"}, {ID: "c-2", Name: "Grace"}}, children)
}

func TestListChildrenBareArray(t *testing.T) {
	fake := testutil.NewFakeFamly("secret")
	defer fake.Close()
	fake.AddChild("c-1", "Ada")
	fake.ServeBareChildren()

	client := newTestClient(t, fake.URL(), nil)
	children, err := client.ListChildren(context.Background())

	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Ada", children[0].Name)
}

func TestListChildrenBadToken(t *testing.T) {
	fake := testutil.NewFakeFamly("other")
	defer fake.Close()

	log := logger.NewTestLogger()
	client := newTestClient(t, fake.URL(), log)
	_, err := client.ListChildren(context.Background())

	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	assert.True(t, log.HasMessage("WARN", "unexpected API response"))
}

func TestTaggedImages(t *testing.T) {
	fake := testutil.NewFakeFamly("secret")
	defer fake.Close()
	fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "a", CreatedAt: "2024-03-01T10:00:00+00:00"},
		testutil.FakeImage{ID: "b", CreatedAt: "2024-03-02T10:00:00+00:00"},
		testutil.FakeImage{ID: "c", CreatedAt: "2024-03-03T10:00:00+00:00"},
	)

	client := newTestClient(t, fake.URL(), nil)

	page, err := client.TaggedImages(context.Background(), "c-1", 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
	assert.Equal(t, fake.ImageURL("c"), page[0].URLBig)
	assert.Equal(t, "2024-03-03T10:00:00+00:00", page[0].RawCreatedAt)
	assert.True(t, page[0].CreatedAt.Equal(time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)))

	next, err := client.TaggedImages(context.Background(), "c-1", 2, page[1].RawCreatedAt)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "a", next[0].ID)

	reqs := fake.TaggedRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "", reqs[0].OlderThan)
	assert.Equal(t, "2024-03-02T10:00:00+00:00", reqs[1].OlderThan)
	assert.Equal(t, 2, reqs[1].Limit)
}

func TestTaggedImagesServerError(t *testing.T) {
	fake := testutil.NewFakeFamly("secret")
	defer fake.Close()
	fake.AddChild("c-1", "Ada")
	fake.FailPage("c-1", "", http.StatusInternalServerError)

	client := newTestClient(t, fake.URL(), nil)
	_, err := client.TaggedImages(context.Background(), "c-1", 10, "")

	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Len(t, fake.TaggedRequests(), 1, "no retry by default")
}

func TestTaggedImagesRetriesWhenEnabled(t *testing.T) {
	calls := 0
	client := newTestClient(t, "https://famly.test", nil)
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return newResponse(http.StatusBadGateway, ""), nil
		}
		return newResponse(http.StatusOK, `[{"imageId":"x","url_big":"u","createdAt":"2024-01-01T00:00:00Z"}]`), nil
	}}})
	client.SetRetry(&retry.Config{MaxAttempts: 2, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}})

	page, err := client.TaggedImages(context.Background(), "c-1", 10, "")

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, page, 1)
	assert.Equal(t, "x", page[0].ID)
}

func TestTaggedImagesMalformed(t *testing.T) {
	client := newTestClient(t, "https://famly.test", logger.NewTestLogger())
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, `{"not":"a list"}`), nil
	}}})

	_, err := client.TaggedImages(context.Background(), "c-1", 10, "")
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestRequestHeaders(t *testing.T) {
	var apiReq, blobReq *http.Request
	client := newTestClient(t, "https://famly.test", nil)
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		if req.URL.Host == "famly.test" {
			apiReq = req
			return newResponse(http.StatusOK, `[]`), nil
		}
		blobReq = req
		return newResponse(http.StatusOK, "jpeg"), nil
	}}})

	_, err := client.TaggedImages(context.Background(), "c-1", 10, "")
	require.NoError(t, err)
	_, err = client.DownloadImage(context.Background(), "https://cdn.test/x.jpg")
	require.NoError(t, err)

	require.NotNil(t, apiReq)
	assert.Equal(t, "secret", apiReq.Header.Get(AccessTokenHeader))
	assert.Equal(t, "html", apiReq.Header.Get("x-famly-platform"))
	assert.Equal(t, "application/json", apiReq.Header.Get("content-type"))

	require.NotNil(t, blobReq)
	assert.Empty(t, blobReq.Header.Get(AccessTokenHeader))
	assert.NotEmpty(t, blobReq.Header.Get("user-agent"))
}

func TestDownloadImage(t *testing.T) {
	fake := testutil.NewFakeFamly("secret")
	defer fake.Close()
	fake.SetImageBody([]byte("jpeg-bytes"))
	fake.FailImage("gone", http.StatusNotFound)

	client := newTestClient(t, fake.URL(), nil)

	data, err := client.DownloadImage(context.Background(), fake.ImageURL("ok"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = client.DownloadImage(context.Background(), fake.ImageURL("gone"))
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestNetworkError(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", nil)
	_, err := client.ListChildren(context.Background())
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestCancelledContext(t *testing.T) {
	fake := testutil.NewFakeFamly("secret")
	defer fake.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, fake.URL(), nil)
	_, err := client.ListChildren(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
