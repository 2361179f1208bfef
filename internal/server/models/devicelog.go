package models

import "time"

const DefaultLogLevel = "INFO"

// DeviceLog is an operational message posted by a scanner or gateway.
type DeviceLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	DeviceIP  string    `json:"device_ip"`
	Level     string    `json:"level"`
}

// DeviceLogStats summarizes the device_logs table.
type DeviceLogStats struct {
	Total   int64            `json:"total_logs"`
	ByLevel map[string]int64 `json:"logs_by_level"`
	Last    *DeviceLog       `json:"last_log,omitempty"`
}
