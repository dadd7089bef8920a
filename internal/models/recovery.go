package models

import "time"

// Item файл, найденный при сканировании устройства.
type Item struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Size   string  `json:"size,omitempty"`
	SizeMB float64 `json:"sizeInMB" validate:"gte=0"`
	Type   string  `json:"type"`
}

// Device устройство, доступное для сканирования.
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SizeInBytes int64  `json:"sizeInBytes"`
	Health      string `json:"health"`
	Icon        string `json:"icon"`
}

// Admission решение о допуске одного файла.
type Admission struct {
	Item
	CanRecover    bool   `json:"canRecover"`
	BlockedReason string `json:"blockedReason,omitempty"`
}

// Limits квоты тарифа на восстановление.
type Limits struct {
	MaxFiles  int     `json:"maxFiles"`
	MaxSizeMB float64 `json:"maxSizeMB"`
	MaxScans  int     `json:"maxScans,omitempty"`
	MaxDays   int     `json:"maxDays,omitempty"`
}

// ScanResult результат сканирования с учётом квот.
type ScanResult struct {
	ScanID           string      `json:"scanId"`
	DeviceID         string      `json:"deviceId"`
	FileType         string      `json:"fileType"`
	Plan             string      `json:"plan"`
	Status           string      `json:"status"`
	Progress         int         `json:"progress"`
	FilesFound       int         `json:"filesFound"`
	FilesRecoverable int         `json:"filesRecoverable"`
	AdmittedSizeMB   float64     `json:"admittedSizeMB"`
	Results          []Admission `json:"results"`
	Limits           Limits      `json:"limits"`
	StartTime        time.Time   `json:"startTime"`
	CompletedTime    time.Time   `json:"completedTime"`
}

// RecoveryReceipt квитанция о восстановлении файлов.
type RecoveryReceipt struct {
	RecoveryID    string    `json:"recoveryId"`
	FilesCount    int       `json:"filesCount"`
	TotalSizeMB   float64   `json:"totalSizeMB"`
	TotalSize     string    `json:"totalSize"`
	Destination   string    `json:"destination"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	StartTime     time.Time `json:"startTime"`
	CompletedTime time.Time `json:"completedTime"`
	Message       string    `json:"message"`
}

// ScanStatus состояние сканирования.
type ScanStatus struct {
	ScanID   string `json:"scanId"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}
