package submission

import (
	"bytes"
	"fmt"
	"image"

	// 注册封面允许的图片格式，DecodeConfig 只读文件头，不做完整解码
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"surroundio/config"
)

// ValidateCover 校验封面图片的字节大小和像素尺寸。
// 尺寸必须与配置精确相等，输入不会被修改。
func ValidateCover(data []byte, cfg *config.Config) error {
	if int64(len(data)) > cfg.MaxCoverBytes {
		return fmt.Errorf("%w: cover image is %d bytes, maximum is %d",
			ErrPolicyViolation, len(data), cfg.MaxCoverBytes)
	}

	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: cover image is not a decodable image: %v", ErrPolicyViolation, err)
	}

	if imgCfg.Width != cfg.CoverWidth || imgCfg.Height != cfg.CoverHeight {
		return fmt.Errorf("%w: cover image is %dx%d, required %dx%d",
			ErrPolicyViolation, imgCfg.Width, imgCfg.Height, cfg.CoverWidth, cfg.CoverHeight)
	}

	return nil
}

// ValidateForm 校验必填字段、同意项和平台选择。
// 所有校验都在任何上传发生之前执行，被拒绝的投稿不会消耗存储。
func ValidateForm(form *Form, cfg *config.Config) error {
	required := map[string]string{
		"submissionCode": form.SubmissionCode,
		"email":          form.Email,
		"artistName":     form.ArtistName,
		"releaseDate":    form.ReleaseDate,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("%w: required field %s is missing", ErrPolicyViolation, field)
		}
	}

	if !form.RightsAgreement || !form.ReReleaseAgreement || !form.PlatformAgreement {
		return fmt.Errorf("%w: all agreements must be accepted", ErrPolicyViolation)
	}

	if len(form.Platforms) == 0 {
		return fmt.Errorf("%w: at least one platform must be selected", ErrPolicyViolation)
	}

	for i, fh := range form.Audio {
		if fh.Size > cfg.MaxAudioBytes {
			return fmt.Errorf("%w: audio file %d is %d bytes, maximum is %d",
				ErrPolicyViolation, i, fh.Size, cfg.MaxAudioBytes)
		}
	}

	return ValidateCover(form.Cover.Data, cfg)
}
