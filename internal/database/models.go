package database

import (
	"time"
)

// EventRow is one stored event. Payload is the msgpack-encoded record.
type EventRow struct {
	ID          string    `gorm:"primaryKey;column:id"`
	DeviceID    string    `gorm:"column:device_id;not null;index:idx_event_rows_device_time,priority:1"`
	TriggeredAt time.Time `gorm:"column:triggered_at;not null;index:idx_event_rows_device_time,priority:2"`
	Payload     []byte    `gorm:"column:payload;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for EventRow
func (EventRow) TableName() string {
	return "calibration_events"
}
