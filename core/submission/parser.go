package submission

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"surroundio/model"
)

// CoverFile 解析出的封面图片
type CoverFile struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Form 从multipart请求体中提取出的全部投稿内容。
// 解析是纯提取过程，不产生任何副作用。
type Form struct {
	SubmissionCode  string
	Email           string
	Password        string
	ArtistName      string
	ArtistNameLatin string
	ReleaseDate     string
	Genre           string
	VersionInfo     string
	Monetization    string

	RightsAgreement    bool
	ReReleaseAgreement bool
	PlatformAgreement  bool

	Platforms           []string
	ExcludedTerritories []string

	Cover     *CoverFile
	Audio     []*multipart.FileHeader
	TrackMeta []model.JSONMap
}

// formValue 读取multipart表单中的单值字段
func formValue(form *multipart.Form, key string) string {
	if values, ok := form.Value[key]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// parseAgreement 解析 "true"/"false" 字符串形式的同意项
func parseAgreement(form *multipart.Form, key string) (bool, error) {
	raw := formValue(form, key)
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: field %s is not a boolean", ErrMalformedSubmission, key)
	}
	return val, nil
}

// parseStringArray 解析JSON数组编码的字符串字段
func parseStringArray(form *multipart.Form, key string) ([]string, error) {
	raw := formValue(form, key)
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: field %s is not a JSON array: %v", ErrMalformedSubmission, key, err)
	}
	return out, nil
}

// ParseForm 从已解析的multipart表单中提取投稿内容。
// 失败场景：封面缺失、没有音频文件、任一音轨元数据无法解析为JSON对象、
// 元数据条数与音频文件数不一致（后者返回 ErrMissingTrackAsset）。
func ParseForm(form *multipart.Form, maxTrackCount int, maxCoverBytes int64) (*Form, error) {
	if form == nil {
		return nil, fmt.Errorf("%w: empty form", ErrMalformedSubmission)
	}

	parsed := &Form{
		SubmissionCode:  formValue(form, "submissionCode"),
		Email:           formValue(form, "email"),
		Password:        formValue(form, "password"),
		ArtistName:      formValue(form, "artistName"),
		ArtistNameLatin: formValue(form, "artistNameLatin"),
		ReleaseDate:     formValue(form, "releaseDate"),
		Genre:           formValue(form, "genre"),
		VersionInfo:     formValue(form, "versionInfo"),
		Monetization:    formValue(form, "monetization"),
	}

	var err error
	if parsed.RightsAgreement, err = parseAgreement(form, "rightsAgreement"); err != nil {
		return nil, err
	}
	if parsed.ReReleaseAgreement, err = parseAgreement(form, "reReleaseAgreement"); err != nil {
		return nil, err
	}
	if parsed.PlatformAgreement, err = parseAgreement(form, "platformAgreement"); err != nil {
		return nil, err
	}

	if parsed.Platforms, err = parseStringArray(form, "platforms"); err != nil {
		return nil, err
	}
	if parsed.ExcludedTerritories, err = parseStringArray(form, "excludedTerritories"); err != nil {
		return nil, err
	}

	// 封面：必须恰好一个
	coverHeaders := form.File["coverFile"]
	if len(coverHeaders) == 0 {
		return nil, fmt.Errorf("%w: cover image is required", ErrMalformedSubmission)
	}
	coverHeader := coverHeaders[0]
	if coverHeader.Size > maxCoverBytes {
		// 大小上限也由策略校验兜底，这里提前拒绝避免读入超大文件
		return nil, fmt.Errorf("%w: cover image exceeds %d bytes", ErrPolicyViolation, maxCoverBytes)
	}
	coverFile, err := coverHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open cover file: %v", ErrMalformedSubmission, err)
	}
	defer coverFile.Close()
	coverData, err := io.ReadAll(coverFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read cover file: %v", ErrMalformedSubmission, err)
	}
	parsed.Cover = &CoverFile{
		Data:        coverData,
		Filename:    coverHeader.Filename,
		ContentType: coverHeader.Header.Get("Content-Type"),
	}

	// 音轨元数据：每条独立JSON编码，必须是对象，原样保留键值
	for _, raw := range form.Value["trackMeta"] {
		var meta model.JSONMap
		if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
			return nil, fmt.Errorf("%w: track metadata is not a JSON object", ErrMalformedSubmission)
		}
		parsed.TrackMeta = append(parsed.TrackMeta, meta)
	}

	// 音频文件：audio_0..audio_N，按下标排序且必须连续
	for i := 0; i <= maxTrackCount; i++ {
		headers, ok := form.File[fmt.Sprintf("audio_%d", i)]
		if !ok || len(headers) == 0 {
			break
		}
		parsed.Audio = append(parsed.Audio, headers[0])
	}

	if len(parsed.Audio) == 0 {
		return nil, fmt.Errorf("%w: at least one audio file is required", ErrMalformedSubmission)
	}
	if len(parsed.Audio) > maxTrackCount {
		return nil, fmt.Errorf("%w: at most %d tracks per submission", ErrMalformedSubmission, maxTrackCount)
	}
	if len(parsed.TrackMeta) != len(parsed.Audio) {
		return nil, fmt.Errorf("%w: %d track metadata entries but %d audio files",
			ErrMissingTrackAsset, len(parsed.TrackMeta), len(parsed.Audio))
	}

	return parsed, nil
}

// TrackTitle 从元数据中取出标题，仅作便捷展示，原始键值不受影响
func TrackTitle(meta model.JSONMap) string {
	if title, ok := meta["title"].(string); ok {
		return title
	}
	return ""
}
