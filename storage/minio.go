package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"surroundio/config"
	"surroundio/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound 对象在存储桶中不存在
var ErrObjectNotFound = errors.New("object not found")

// MinioStore 封装了 MinIO 客户端，提供投稿资产的读写删除。
// 实例在进程启动时创建一次并注入使用方。
type MinioStore struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
}

// NewMinioStore 创建一个新的 MinIO 存储客户端
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	publicURL := cfg.MinioPublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		region:    cfg.MinioRegion,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// EnsureBucket 检查存储桶是否存在，不存在则创建
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("Bucket created", logger.String("bucket", s.bucket))
	}

	return nil
}

// Put 上传对象并返回持久化URL
func (s *MinioStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, reader, size, opts); err != nil {
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}

	return s.URLFor(key), nil
}

// Get 读取对象内容。对象不存在时返回 ErrObjectNotFound。
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from MinIO: %w", err)
	}

	// GetObject 是惰性的，Stat 才会真正发起请求
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return object, nil
}

// Delete 删除对象。对象不存在视为成功。
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete object from MinIO: %w", err)
	}
	return nil
}

// URLFor 根据对象键构造持久化访问URL
func (s *MinioStore) URLFor(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
}

// KeyFromURL 从持久化URL还原对象键。删除流水线依赖它从记录中
// 存储的URL精确定位资产，而不是从日志反推。
func (s *MinioStore) KeyFromURL(url string) string {
	prefix := fmt.Sprintf("%s/%s/", s.publicURL, s.bucket)
	if strings.HasPrefix(url, prefix) {
		return strings.TrimPrefix(url, prefix)
	}
	// 未知前缀时退化为取bucket段之后的路径
	if idx := strings.Index(url, "/"+s.bucket+"/"); idx >= 0 {
		return url[idx+len(s.bucket)+2:]
	}
	return ""
}
