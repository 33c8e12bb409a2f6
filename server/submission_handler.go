package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"surroundio/config"
	"surroundio/core/submission"
	"surroundio/logger"
	"surroundio/model"

	"github.com/gorilla/mux"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	pipeline *submission.Pipeline
	cfg      *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(pipeline *submission.Pipeline, cfg *config.Config) *APIHandler {
	return &APIHandler{
		pipeline: pipeline,
		cfg:      cfg,
	}
}

// errorResponse API错误响应体
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// statusFor 将流水线错误映射为HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, submission.ErrMalformedSubmission),
		errors.Is(err, submission.ErrPolicyViolation),
		errors.Is(err, submission.ErrMissingTrackAsset):
		return http.StatusBadRequest
	case errors.Is(err, submission.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError 输出统一的错误响应。
// 生产环境只返回分类和提示信息，内部错误细节不回显给客户端。
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Error:   submission.Reason(err),
		Message: "submission request failed",
	}
	if !h.cfg.IsProduction() {
		resp.Detail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(resp)
}

// maxRequestBytes 单次投稿请求体的上限
func (h *APIHandler) maxRequestBytes() int64 {
	return h.cfg.MaxCoverBytes + int64(h.cfg.MaxTrackCount)*h.cfg.MaxAudioBytes + (1 << 20)
}

// CreateSubmissionHandler 处理投稿请求
func (h *APIHandler) CreateSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	logger.Info("开始处理投稿请求",
		logger.String("remoteAddr", r.RemoteAddr),
		logger.Int64("contentLength", r.ContentLength))

	if r.ContentLength > h.maxRequestBytes() {
		logger.Warn("请求体过大，拒绝处理",
			logger.Int64("contentLength", r.ContentLength),
			logger.Int64("maxSize", h.maxRequestBytes()))
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Error("解析表单失败", logger.ErrorField(err))
		h.writeError(w, submission.ErrMalformedSubmission)
		return
	}
	defer r.MultipartForm.RemoveAll()

	result, err := h.pipeline.Submit(r.Context(), r.MultipartForm)
	if err != nil {
		logger.Warn("投稿失败",
			logger.String("reason", submission.Reason(err)),
			logger.ErrorField(err))
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetSubmissionHandler 查询投稿记录
func (h *APIHandler) GetSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, submission.ErrNotFound)
		return
	}

	sub, err := h.pipeline.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}

// ListSubmissionsHandler 分页列出投稿记录。
// 带code查询参数时按投稿码精确查询单条记录。
func (h *APIHandler) ListSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		sub, err := h.pipeline.GetByCode(r.Context(), code)
		if err != nil {
			h.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sub)
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	subs, err := h.pipeline.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if subs == nil {
		subs = []*model.Submission{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

// DeleteSubmissionHandler 删除投稿记录及其全部资产
func (h *APIHandler) DeleteSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, submission.ErrNotFound)
		return
	}

	if err := h.pipeline.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "submission deleted",
	})
}

// DownloadTrackHandler 下载指定音轨的音频文件
func (h *APIHandler) DownloadTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, submission.ErrNotFound)
		return
	}

	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.writeError(w, submission.ErrNotFound)
		return
	}

	reader, filename, err := h.pipeline.OpenTrackAudio(r.Context(), id, index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, reader); err != nil {
		logger.Error("音轨下载传输失败",
			logger.Int64("id", id),
			logger.Int("index", index),
			logger.ErrorField(err))
	}
}

// parseID 从路径参数中解析记录ID
func parseID(r *http.Request) (int64, error) {
	vars := mux.Vars(r)
	return strconv.ParseInt(vars["id"], 10, 64)
}

// queryInt 解析整数查询参数，缺失或非法时返回缺省值
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
