package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"time"

	"surroundio/cache"
	"surroundio/config"
	"surroundio/logger"
	"surroundio/model"
	"surroundio/repository"
	"surroundio/storage"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// ObjectStore 对象存储能力，由 storage.MinioStore 实现
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) string
}

// Result 提交成功后的返回内容
type Result struct {
	ID        int64    `json:"id"`
	CoverURL  string   `json:"coverUrl"`
	TrackURLs []string `json:"trackUrls"`
}

// Pipeline 投稿流水线：解析 → 校验 → 上传封面 → 上传音轨 → 落库。
// 对调用方而言操作是原子的：要么记录连同全部资产都存在，
// 要么记录不存在且本次写入的资产被尽力清理。
type Pipeline struct {
	store ObjectStore
	repo  repository.SubmissionRepository
	cache *cache.SubmissionCache
	cfg   *config.Config
}

// NewPipeline 创建投稿流水线
func NewPipeline(store ObjectStore, repo repository.SubmissionRepository, subCache *cache.SubmissionCache, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store: store,
		repo:  repo,
		cache: subCache,
		cfg:   cfg,
	}
}

// Submit 处理一次完整的投稿请求
func (p *Pipeline) Submit(ctx context.Context, form *multipart.Form) (*Result, error) {
	// 解析与校验都发生在任何远程上传之前
	parsed, err := ParseForm(form, p.cfg.MaxTrackCount, p.cfg.MaxCoverBytes)
	if err != nil {
		return nil, err
	}
	if err := ValidateForm(parsed, p.cfg); err != nil {
		return nil, err
	}

	// 上传封面
	coverKey := storage.NewObjectKey(storage.CoverFolder, parsed.Cover.Filename, ".jpg")
	coverURL, err := p.putObject(ctx, coverKey, bytes.NewReader(parsed.Cover.Data),
		int64(len(parsed.Cover.Data)), coverContentType(parsed.Cover))
	if err != nil {
		return nil, fmt.Errorf("%w: cover upload failed: %v", ErrStoreUnavailable, err)
	}

	// 并发上传音轨，受配置的并发上限约束。
	// 结果按下标写入，音轨顺序与提交顺序一致，与完成顺序无关。
	trackURLs := make([]string, len(parsed.Audio))
	var mu sync.Mutex
	uploaded := []string{coverKey} // 本次请求已写入的全部对象键，清理时据此精确删除

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentUploads)
	for i, header := range parsed.Audio {
		g.Go(func() error {
			key := storage.NewObjectKey(storage.AudioFolder, header.Filename, ".mp3")
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open audio file %d: %w", i, err)
			}
			defer file.Close()

			url, err := p.putObject(gctx, key, file, header.Size, audioContentType(header))
			if err != nil {
				return fmt.Errorf("audio upload %d failed: %w", i, err)
			}

			mu.Lock()
			uploaded = append(uploaded, key)
			mu.Unlock()
			trackURLs[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.cleanup(uploaded)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// 组装记录并落库
	sub, err := p.assemble(parsed, coverURL, trackURLs)
	if err != nil {
		p.cleanup(uploaded)
		return nil, err
	}
	if err := p.repo.Create(ctx, sub); err != nil {
		p.cleanup(uploaded)
		if repository.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: submission code %q already exists", ErrPersistence, sub.SubmissionCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := p.cache.Set(ctx, sub); err != nil {
		logger.Warn("缓存投稿记录失败", logger.Int64("id", sub.ID), logger.ErrorField(err))
	}

	logger.Info("Submission committed",
		logger.Int64("id", sub.ID),
		logger.String("code", sub.SubmissionCode),
		logger.Int("tracks", len(trackURLs)))

	return &Result{ID: sub.ID, CoverURL: coverURL, TrackURLs: trackURLs}, nil
}

// Get 查询投稿记录，优先读取缓存
func (p *Pipeline) Get(ctx context.Context, id int64) (*model.Submission, error) {
	if cached, err := p.cache.Get(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	sub, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	if err := p.cache.Set(ctx, sub); err != nil {
		logger.Warn("缓存投稿记录失败", logger.Int64("id", id), logger.ErrorField(err))
	}
	return sub, nil
}

// GetByCode 根据投稿码查询记录
func (p *Pipeline) GetByCode(ctx context.Context, code string) (*model.Submission, error) {
	sub, err := p.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: code %q", ErrNotFound, code)
	}
	return sub, nil
}

// List 分页列出投稿记录
func (p *Pipeline) List(ctx context.Context, limit, offset int) ([]*model.Submission, error) {
	subs, err := p.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return subs, nil
}

// Delete 删除投稿记录及其拥有的全部资产。
// 单个资产删除失败只记录日志，不阻断其余删除，记录删除照常进行。
func (p *Pipeline) Delete(ctx context.Context, id int64) error {
	sub, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sub == nil {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	keys := []string{p.store.KeyFromURL(sub.CoverURL)}
	for _, track := range sub.Tracks {
		keys = append(keys, p.store.KeyFromURL(track.AudioURL))
	}

	for _, key := range keys {
		if key == "" {
			continue
		}
		delCtx, cancel := context.WithTimeout(ctx, p.cfg.UploadTimeout)
		err := p.store.Delete(delCtx, key)
		cancel()
		if err != nil {
			logger.Warn("删除资产失败",
				logger.Int64("id", id),
				logger.String("key", key),
				logger.ErrorField(err))
		}
	}

	if err := p.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := p.cache.Delete(ctx, id); err != nil {
		logger.Warn("删除缓存记录失败", logger.Int64("id", id), logger.ErrorField(err))
	}

	logger.Info("Submission deleted", logger.Int64("id", id), logger.Int("assets", len(keys)))
	return nil
}

// OpenTrackAudio 打开指定音轨的音频对象用于下载，
// 返回读取流和去掉随机前缀后的原始文件名。
func (p *Pipeline) OpenTrackAudio(ctx context.Context, id int64, index int) (io.ReadCloser, string, error) {
	sub, err := p.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if index < 0 || index >= len(sub.Tracks) {
		return nil, "", fmt.Errorf("%w: track index %d", ErrNotFound, index)
	}

	key := p.store.KeyFromURL(sub.Tracks[index].AudioURL)
	reader, err := p.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%w: audio object missing", ErrNotFound)
		}
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return reader, storage.OriginalNameFromKey(key), nil
}

// putObject 带超时上传单个对象
func (p *Pipeline) putObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	putCtx, cancel := context.WithTimeout(ctx, p.cfg.UploadTimeout)
	defer cancel()
	return p.store.Put(putCtx, key, reader, size, contentType)
}

// assemble 用已校验的字段和上传结果组装投稿记录
func (p *Pipeline) assemble(form *Form, coverURL string, trackURLs []string) (*model.Submission, error) {
	tracks := make(model.TrackList, len(form.TrackMeta))
	for i, meta := range form.TrackMeta {
		tracks[i] = model.Track{
			Title:    TrackTitle(meta),
			Fields:   meta,
			AudioURL: trackURLs[i],
		}
	}

	sub := &model.Submission{
		SubmissionCode:      form.SubmissionCode,
		Email:               form.Email,
		ArtistName:          form.ArtistName,
		ArtistNameLatin:     form.ArtistNameLatin,
		ReleaseDate:         form.ReleaseDate,
		Genre:               form.Genre,
		VersionInfo:         form.VersionInfo,
		CoverURL:            coverURL,
		Tracks:              tracks,
		Platforms:           model.StringList(form.Platforms),
		ExcludedTerritories: model.StringList(form.ExcludedTerritories),
		RightsAgreement:     form.RightsAgreement,
		ReReleaseAgreement:  form.ReReleaseAgreement,
		PlatformAgreement:   form.PlatformAgreement,
		Monetization:        form.Monetization,
		Status:              model.SubmissionStatusProcessing,
	}

	if form.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to hash password: %v", ErrPersistence, err)
		}
		sub.PasswordHash = string(hash)
	}

	return sub, nil
}

// cleanup 尽力删除本次请求已写入的全部对象。
// 请求上下文此时可能已取消，这里使用独立的后台上下文。
// 失败只记录日志，调用方看到的仍是原始错误。
func (p *Pipeline) cleanup(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			logger.Error("补偿清理删除对象失败",
				logger.String("key", key),
				logger.ErrorField(err))
		} else {
			logger.Info("补偿清理已删除对象", logger.String("key", key))
		}
	}
}

// coverContentType 封面的Content-Type，缺省按jpeg处理
func coverContentType(cover *CoverFile) string {
	if cover.ContentType != "" {
		return cover.ContentType
	}
	return "image/jpeg"
}

// audioContentType 音频的Content-Type，缺省按mpeg处理
func audioContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "audio/mpeg"
}
