package model

// Blob is an object stored in the database object store.
type Blob struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Content   []byte `gorm:"column:content;not null"`
	Size      int64  `gorm:"column:size;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Blob) TableName() string {
	return "blobs"
}
