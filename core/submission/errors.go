package submission

import "errors"

// 投稿流水线的错误分类。处理层通过 errors.Is 将其映射为HTTP状态码。
var (
	// ErrMalformedSubmission 客户端提交的结构不完整或无法解析，未产生任何副作用
	ErrMalformedSubmission = errors.New("malformed submission")

	// ErrPolicyViolation 封面不符合尺寸策略，或必填字段/同意项缺失，未产生任何副作用
	ErrPolicyViolation = errors.New("policy violation")

	// ErrMissingTrackAsset 音轨元数据数量与音频文件数量不一致
	ErrMissingTrackAsset = errors.New("missing track asset")

	// ErrStoreUnavailable 对象存储上传或删除失败、超时
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPersistence 数据库写入失败，包括唯一键冲突
	ErrPersistence = errors.New("persistence error")

	// ErrNotFound 目标记录不存在
	ErrNotFound = errors.New("submission not found")
)

// Reason 返回错误对应的分类标识，用于API响应
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedSubmission):
		return "MalformedSubmission"
	case errors.Is(err, ErrPolicyViolation):
		return "PolicyViolation"
	case errors.Is(err, ErrMissingTrackAsset):
		return "MissingTrackAsset"
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, ErrPersistence):
		return "PersistenceError"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	default:
		return "InternalError"
	}
}
