package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/config"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/imageformat"
	"github.com/avolov/imgd/internal/router"
	"github.com/avolov/imgd/internal/storage"
	"github.com/avolov/imgd/internal/transcoder"
)

const testToken = "test-token"

var testDBSeq atomic.Int64

type testEnv struct {
	ts *httptest.Server
	db database.Database
}

// testServer builds a full server backed by in-memory SQLite and a
// temporary filesystem storage directory, with the worker running.
// withRedis additionally wires a miniredis-backed cache.
func testServer(t *testing.T, withRedis bool, tweak func(*config.Config)) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:htest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := database.NewSQLiteDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := storage.NewFileSystem(t.TempDir())

	cfg := &config.Config{
		AuthToken:      testToken,
		DefaultTTL:     time.Hour,
		MaxImageWidth:  4096,
		MaxImageHeight: 4096,
		MaxUploadBytes: 10 << 20,
		ImageAllowance: 100000,
		QueueSize:      64,
		Workers:        2,
	}
	if tweak != nil {
		tweak(cfg)
	}

	var c *cache.Cache
	if withRedis {
		mr := miniredis.RunT(t)
		c, err = cache.New(context.Background(), mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
	}

	worker := transcoder.New(db, store, c, cfg.DefaultTTL, cfg.QueueSize, cfg.Workers)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		worker.Wait()
	})
	worker.Start(ctx)

	srv := router.New(db, store, c, worker, cfg)
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, db: db}
}

// testPNG returns an encoded w x h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 50, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// authReq creates an *http.Request with the test bearer token.
func authReq(t *testing.T, method, url string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

// multipartFileBody builds a multipart request body with a file field.
func multipartFileBody(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type envelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

type uploadResult struct {
	Identifier uuid.UUID          `json:"image_identifier"`
	Format     imageformat.Format `json:"image_format"`
	Computed   bool               `json:"computed"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// upload posts content and returns the decoded result.
func upload(t *testing.T, env *testEnv, content []byte) uploadResult {
	t.Helper()
	body, ct := multipartFileBody(t, content)
	req := authReq(t, http.MethodPost, env.ts.URL+"/images", body)
	req.Header.Set("Content-Type", ct)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e := decodeEnvelope(t, resp)
	require.True(t, e.Success)

	var res uploadResult
	require.NoError(t, json.Unmarshal(e.Result, &res))
	return res
}

func TestHealth(t *testing.T) {
	env := testServer(t, false, nil)

	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

// waitComputed blocks until the (id, format) row is computed.
func waitComputed(t *testing.T, db database.Database, id uuid.UUID, format imageformat.Format) {
	t.Helper()
	require.Eventually(t, func() bool {
		img, err := db.GetImage(id, format)
		return err == nil && img.Computed
	}, 5*time.Second, 10*time.Millisecond)
}
