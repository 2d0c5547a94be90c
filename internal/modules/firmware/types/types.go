package types

import "time"

// Firmware is one uploaded device binary. FilePath is the public locator
// under /firmware/, not a filesystem path.
type Firmware struct {
	ID          int64     `json:"id"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	FilePath    string    `json:"filePath"`
	CreatedAt   time.Time `json:"createdAt"`
}

type LatestFirmware struct {
	Firmware    Firmware `json:"firmware"`
	DownloadURL string   `json:"downloadUrl"`
}
