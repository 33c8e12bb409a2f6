package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"surroundio/model"

	"github.com/go-redis/redis/v8"
)

// submissionTTL 投稿记录缓存的过期时间
const submissionTTL = 24 * time.Hour

// SubmissionCache 缓存已提交的投稿记录，减少查询接口的数据库压力。
// 记录创建后不会修改，因此缓存只需在删除时失效。
type SubmissionCache struct {
	client *redis.Client
}

// NewSubmissionCache 创建投稿缓存
func NewSubmissionCache(client *redis.Client) *SubmissionCache {
	return &SubmissionCache{client: client}
}

// submissionKey 根据记录ID生成Redis键
func submissionKey(id int64) string {
	return fmt.Sprintf("submission:%d", id)
}

// Set 将投稿记录写入缓存
func (c *SubmissionCache) Set(ctx context.Context, sub *model.Submission) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	if err := c.client.Set(ctx, submissionKey(sub.ID), data, submissionTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache submission: %w", err)
	}
	return nil
}

// Get 从缓存读取投稿记录，未命中返回 (nil, nil)
func (c *SubmissionCache) Get(ctx context.Context, id int64) (*model.Submission, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, submissionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached submission: %w", err)
	}

	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached submission: %w", err)
	}
	return &sub, nil
}

// Delete 删除缓存中的投稿记录
func (c *SubmissionCache) Delete(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, submissionKey(id)).Err()
}
