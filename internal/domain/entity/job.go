package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether a status may never be overwritten again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Label is one detected label with its confidence in [0,100].
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// LabelList is stored as a single jsonb column. A nil list maps to SQL NULL,
// which is how "label detection has not run yet" is represented.
type LabelList []Label

func (l LabelList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *LabelList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("labels: cannot scan %T", src)
	}
	return json.Unmarshal(data, l)
}

// Job is the per-image pipeline record. ImageID equals the uploaded object's
// key. Each worker owns a disjoint set of fields: the resize worker writes
// ThumbnailKey, the label worker writes Labels; status only ever advances.
type Job struct {
	ImageID      string    `gorm:"primaryKey" json:"image_id"`
	Status       JobStatus `gorm:"not null;type:text" json:"status"`
	Labels       LabelList `gorm:"type:jsonb" json:"labels,omitempty"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
