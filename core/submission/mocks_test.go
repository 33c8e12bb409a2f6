package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"surroundio/model"

	"surroundio/storage"
)

const fakeURLPrefix = "http://cdn.test/surroundio/"

// fakeObjectStore 实现 ObjectStore，在内存中记录对象和调用轨迹
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	deletes []string

	// PutErr 非空时对匹配的键返回错误
	PutErr func(key string) error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if f.PutErr != nil {
		if err := f.PutErr(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.puts = append(f.puts, key)
	return fakeURLPrefix + key, nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeObjectStore) KeyFromURL(url string) string {
	return strings.TrimPrefix(url, fakeURLPrefix)
}

func (f *fakeObjectStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeObjectStore) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeSubmissionRepo 实现 repository.SubmissionRepository 的内存版本
type fakeSubmissionRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Submission

	// CreateErr 非空时 Create 直接失败
	CreateErr   error
	createCalls int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{byID: make(map[int64]*model.Submission)}
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.CreateErr != nil {
		return r.CreateErr
	}
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

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubmissionRepo) GetByCode(ctx context.Context, code string) (*model.Submission, error) {
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

func (r *fakeSubmissionRepo) List(ctx context.Context, limit, offset int) ([]*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Submission
	for _, sub := range r.byID {
		copied := *sub
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeSubmissionRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}
