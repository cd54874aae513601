package model

import (
	"time"

	"gorm.io/datatypes"
)

// Review is the stored review document. Revisions are embedded as JSON;
// Language and PackageName mirror the first file of the last revision so
// automatic lookups and propagation scans can be answered by an index.
// Language is stored lower-cased.
type Review struct {
	ReviewID    string                                 `gorm:"column:review_id;type:text;primaryKey"`
	Author      string                                 `gorm:"column:author;type:text;not null"`
	Name        string                                 `gorm:"column:name;type:text;not null"`
	Language    string                                 `gorm:"column:language;type:text;not null;default:'';index:idx_reviews_language_package,priority:1"`
	PackageName string                                 `gorm:"column:package_name;type:text;not null;default:'';index:idx_reviews_language_package,priority:2"`
	IsClosed    bool                                   `gorm:"column:is_closed;not null;default:false"`
	IsAutomatic bool                                   `gorm:"column:is_automatic;not null;default:false"`
	RunAnalysis bool                                   `gorm:"column:run_analysis;not null;default:false"`
	Revisions   datatypes.JSONType[[]RevisionDocument] `gorm:"column:revisions;not null"`
	Files       datatypes.JSONSlice[FileDocument]      `gorm:"column:files;not null"`
	ETag        int64                                  `gorm:"column:etag;not null;default:0"`
	CreatedAt   string                                 `gorm:"column:created_at;type:text;not null"`
	UpdatedAt   string                                 `gorm:"column:updated_at;type:text;not null"`
}

func (Review) TableName() string {
	return "reviews"
}

type RevisionDocument struct {
	RevisionID   string         `json:"revisionId"`
	Author       string         `json:"author"`
	Label        string         `json:"label,omitempty"`
	CreationDate time.Time      `json:"creationDate"`
	Files        []FileDocument `json:"files"`
	Approvers    []string       `json:"approvers"`
}

// FileDocument is also the shape of the legacy top-level "files" column.
type FileDocument struct {
	ReviewFileID  string `json:"reviewFileId"`
	Name          string `json:"name"`
	Language      string `json:"language"`
	PackageName   string `json:"packageName"`
	VersionString string `json:"versionString"`
	HasOriginal   bool   `json:"hasOriginal"`
	ContentHash   string `json:"contentHash,omitempty"`
}
