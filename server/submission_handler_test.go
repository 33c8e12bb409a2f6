package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"surroundio/config"
	"surroundio/core/submission"
	"surroundio/model"
	"surroundio/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeURLPrefix = "http://cdn.test/surroundio/"

// fakeStore 内存对象存储
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return fakeURLPrefix + key, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) KeyFromURL(url string) string {
	return strings.TrimPrefix(url, fakeURLPrefix)
}

func (f *fakeStore) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeRepo 内存投稿仓库
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Submission
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*model.Submission)}
}

func (r *fakeRepo) Create(ctx context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.SubmissionCode == sub.SubmissionCode {
			return fmt.Errorf("Error 1062 (23000): Duplicate entry '%s' for key 'submission_code'", sub.SubmissionCode)
		}
	}
	r.nextID++
	sub.ID = r.nextID
	copied := *sub
	r.byID[sub.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeRepo) GetByCode(ctx context.Context, code string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.byID {
		if sub.SubmissionCode == code {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) List(ctx context.Context, limit, offset int) ([]*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Submission
	for id := int64(1); id <= r.nextID; id++ {
		if sub, ok := r.byID[id]; ok {
			copied := *sub
			out = append(out, &copied)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:               "development",
		MaxCoverBytes:        1 << 20,
		MaxAudioBytes:        1 << 20,
		MaxTrackCount:        10,
		CoverWidth:           8,
		CoverHeight:          8,
		MaxConcurrentUploads: 4,
		UploadTimeout:        5 * time.Second,
	}
}

// newTestRouter 按生产环境的路由表组装测试路由
func newTestRouter(store *fakeStore, repo *fakeRepo) *mux.Router {
	cfg := testConfig()
	pipeline := submission.NewPipeline(store, repo, nil, cfg)
	h := NewAPIHandler(pipeline, cfg)

	router := mux.NewRouter()
	router.HandleFunc("/api/submissions", h.CreateSubmissionHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/submissions", h.ListSubmissionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/submissions/{id}", h.GetSubmissionHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/submissions/{id}", h.DeleteSubmissionHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/submissions/{id}/tracks/{index}/download", h.DownloadTrackHandler).Methods(http.MethodGet)
	return router
}

func coverPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

type submissionRequest struct {
	values map[string][]string
	tracks [][]byte
	cover  []byte
}

func validRequest(t *testing.T, trackCount int) *submissionRequest {
	req := &submissionRequest{
		values: map[string][]string{
			"submissionCode":     {"SUB-2026-0001"},
			"email":              {"artist@example.com"},
			"artistName":         {"灰烬乐队"},
			"releaseDate":        {"2026-10-01"},
			"rightsAgreement":    {"true"},
			"reReleaseAgreement": {"true"},
			"platformAgreement":  {"true"},
			"platforms":          {`["spotify"]`},
		},
		cover: coverPNG(t),
	}
	for i := 0; i < trackCount; i++ {
		req.values["trackMeta"] = append(req.values["trackMeta"], fmt.Sprintf(`{"title":"T%d"}`, i))
		req.tracks = append(req.tracks, []byte(fmt.Sprintf("audio payload %d", i)))
	}
	return req
}

// postSubmission 编码multipart请求体并发起投稿请求
func postSubmission(t *testing.T, router *mux.Router, payload *submissionRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, vals := range payload.values {
		for _, v := range vals {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	if payload.cover != nil {
		fw, err := writer.CreateFormFile("coverFile", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(payload.cover)
		require.NoError(t, err)
	}
	for i, data := range payload.tracks {
		fw, err := writer.CreateFormFile(fmt.Sprintf("audio_%d", i), fmt.Sprintf("track-%d.mp3", i))
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateSubmissionHandler(t *testing.T) {
	t.Run("valid submission", func(t *testing.T) {
		store := newFakeStore()
		router := newTestRouter(store, newFakeRepo())

		rr := postSubmission(t, router, validRequest(t, 2))
		require.Equal(t, http.StatusOK, rr.Code)

		var result submission.Result
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.NotZero(t, result.ID)
		assert.Contains(t, result.CoverURL, "covers/")
		assert.Len(t, result.TrackURLs, 2)
		assert.Equal(t, 3, store.objectCount())
	})

	t.Run("agreement declined", func(t *testing.T) {
		store := newFakeStore()
		router := newTestRouter(store, newFakeRepo())

		payload := validRequest(t, 1)
		payload.values["platformAgreement"] = []string{"false"}
		rr := postSubmission(t, router, payload)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "PolicyViolation")
		assert.Zero(t, store.objectCount())
	})

	t.Run("metadata audio count mismatch", func(t *testing.T) {
		router := newTestRouter(newFakeStore(), newFakeRepo())

		payload := validRequest(t, 1)
		payload.values["trackMeta"] = append(payload.values["trackMeta"], `{"title":"extra"}`)
		rr := postSubmission(t, router, payload)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "MissingTrackAsset")
	})

	t.Run("missing cover", func(t *testing.T) {
		router := newTestRouter(newFakeStore(), newFakeRepo())

		payload := validRequest(t, 1)
		payload.cover = nil
		rr := postSubmission(t, router, payload)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "MalformedSubmission")
	})

	t.Run("duplicate submission code", func(t *testing.T) {
		router := newTestRouter(newFakeStore(), newFakeRepo())

		rr := postSubmission(t, router, validRequest(t, 1))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = postSubmission(t, router, validRequest(t, 1))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "PersistenceError")
	})

	t.Run("declared content length too large", func(t *testing.T) {
		router := newTestRouter(newFakeStore(), newFakeRepo())

		req := httptest.NewRequest(http.MethodPost, "/api/submissions", bytes.NewReader([]byte("x")))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
		req.ContentLength = 1 << 30
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})
}

func TestGetSubmissionHandler(t *testing.T) {
	router := newTestRouter(newFakeStore(), newFakeRepo())
	rr := postSubmission(t, router, validRequest(t, 1))
	require.Equal(t, http.StatusOK, rr.Code)
	var created submission.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	t.Run("existing record", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/submissions/%d", created.ID), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var sub model.Submission
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sub))
		assert.Equal(t, "SUB-2026-0001", sub.SubmissionCode)
		assert.Len(t, sub.Tracks, 1)

		// 密码哈希不出现在响应中
		assert.NotContains(t, rr.Body.String(), "passwordHash")
	})

	t.Run("missing record", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/submissions/9999", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "NotFound")
	})

	t.Run("non numeric id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/submissions/abc", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestListSubmissionsHandler(t *testing.T) {
	router := newTestRouter(newFakeStore(), newFakeRepo())

	for i := 0; i < 3; i++ {
		payload := validRequest(t, 1)
		payload.values["submissionCode"] = []string{fmt.Sprintf("SUB-2026-%04d", i)}
		rr := postSubmission(t, router, payload)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	t.Run("lists records", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var subs []*model.Submission
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &subs))
		assert.Len(t, subs, 3)
	})

	t.Run("honors limit and offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/submissions?limit=1&offset=2", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var subs []*model.Submission
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &subs))
		assert.Len(t, subs, 1)
	})

	t.Run("lookup by submission code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/submissions?code=SUB-2026-0001", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var sub model.Submission
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sub))
		assert.Equal(t, "SUB-2026-0001", sub.SubmissionCode)
	})

	t.Run("unknown code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/submissions?code=SUB-9999-0000", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeleteSubmissionHandler(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, newFakeRepo())
	rr := postSubmission(t, router, validRequest(t, 2))
	require.Equal(t, http.StatusOK, rr.Code)
	var created submission.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, 3, store.objectCount())

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/submissions/%d", created.ID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.objectCount())

	// 删除后记录不可再查询
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/submissions/%d", created.ID), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadTrackHandler(t *testing.T) {
	router := newTestRouter(newFakeStore(), newFakeRepo())
	rr := postSubmission(t, router, validRequest(t, 2))
	require.Equal(t, http.StatusOK, rr.Code)
	var created submission.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	t.Run("streams audio with original filename", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/api/submissions/%d/tracks/1/download", created.ID), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="track-1.mp3"`)
		assert.Equal(t, "audio payload 1", rec.Body.String())
	})

	t.Run("track index out of range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/api/submissions/%d/tracks/5/download", created.ID), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
