package repository

import (
	"context"
	"errors"
	"strings"

	"surroundio/model"

	"gorm.io/gorm"
)

// SubmissionRepository 定义投稿记录的数据库操作接口
type SubmissionRepository interface {
	// Create 插入投稿记录，成功后回填生成的ID
	Create(ctx context.Context, sub *model.Submission) error

	// GetByID 根据ID获取投稿记录，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id int64) (*model.Submission, error)

	// GetByCode 根据投稿码获取记录，不存在返回 (nil, nil)
	GetByCode(ctx context.Context, code string) (*model.Submission, error)

	// List 按创建时间倒序分页列出投稿记录
	List(ctx context.Context, limit, offset int) ([]*model.Submission, error)

	// Delete 删除投稿记录
	Delete(ctx context.Context, id int64) error
}

// gormSubmissionRepository GORM 实现
type gormSubmissionRepository struct {
	db *gorm.DB
}

// NewGormSubmissionRepository 创建 GORM 投稿仓库
func NewGormSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &gormSubmissionRepository{db: db}
}

// Create 插入投稿记录
func (r *gormSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// GetByID 根据ID获取投稿记录
func (r *gormSubmissionRepository) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// GetByCode 根据投稿码获取记录
func (r *gormSubmissionRepository) GetByCode(ctx context.Context, code string) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).Where("submission_code = ?", code).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// List 按创建时间倒序分页列出投稿记录
func (r *gormSubmissionRepository) List(ctx context.Context, limit, offset int) ([]*model.Submission, error) {
	var subs []*model.Submission
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&subs).Error
	return subs, err
}

// Delete 删除投稿记录
func (r *gormSubmissionRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Submission{}, id).Error
}

// IsDuplicateKey 判断错误是否为唯一键冲突
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint")
}
