package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONMap 自定义类型，保存客户端提交的原始键值对（GORM JSON 字段）
type JSONMap map[string]interface{}

// Scan 实现 sql.Scanner 接口
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*m = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*m = nil
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Value 实现 driver.Valuer 接口
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// StringList 自定义类型用于 GORM JSON 字段的自动扫描
type StringList []string

// Scan 实现 sql.Scanner 接口
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value 实现 driver.Valuer 接口
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Track 表示投稿中的一首歌曲。Fields 原样保留客户端提交的
// 歌曲级元数据键值对，AudioURL 在音频上传完成后由流水线写入。
type Track struct {
	Title    string  `json:"title"`
	Fields   JSONMap `json:"fields,omitempty"`
	AudioURL string  `json:"audioUrl"`
}

// TrackList 自定义类型用于 GORM JSON 字段的自动扫描
type TrackList []Track

// Scan 实现 sql.Scanner 接口
func (t *TrackList) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*t = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*t = nil
		return nil
	}
	return json.Unmarshal(bytes, t)
}

// Value 实现 driver.Valuer 接口
func (t TrackList) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Submission 表示一次完整的专辑投稿记录。
// 记录仅在封面和所有音轨上传成功后创建，创建后不再修改。
type Submission struct {
	ID             int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	SubmissionCode string `json:"submissionCode" gorm:"size:64;uniqueIndex;not null"`

	Email           string `json:"email" gorm:"size:255;not null"`
	PasswordHash    string `json:"-" gorm:"size:255"` // Not exposed in API responses
	ArtistName      string `json:"artistName" gorm:"size:255;not null"`
	ArtistNameLatin string `json:"artistNameLatin" gorm:"size:255"`

	ReleaseDate string `json:"releaseDate" gorm:"size:32"`
	Genre       string `json:"genre" gorm:"size:64"`
	VersionInfo string `json:"versionInfo" gorm:"size:255"`

	CoverURL string    `json:"coverUrl" gorm:"size:767;not null"`
	Tracks   TrackList `json:"tracks" gorm:"type:json;not null"`

	Platforms           StringList `json:"platforms" gorm:"type:json;not null"`
	ExcludedTerritories StringList `json:"excludedTerritories,omitempty" gorm:"type:json"`

	RightsAgreement    bool   `json:"rightsAgreement" gorm:"not null"`
	ReReleaseAgreement bool   `json:"reReleaseAgreement" gorm:"not null"`
	PlatformAgreement  bool   `json:"platformAgreement" gorm:"not null"`
	Monetization       string `json:"monetization" gorm:"size:32"`

	Status    string    `json:"status" gorm:"size:20;default:'processing'"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Submission) TableName() string {
	return "submissions"
}

const (
	// 投稿状态。状态在创建时固定，本服务不做状态流转。
	SubmissionStatusProcessing = "processing"
)
