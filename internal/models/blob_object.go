package models

import "time"

// BlobObject is a single key/value entry of the SQL-backed blob store.
type BlobObject struct {
	Key       string    `gorm:"column:object_key;primaryKey;size:512" json:"key"`
	Data      []byte    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by the blob store.
func (BlobObject) TableName() string {
	return "blob_objects"
}
