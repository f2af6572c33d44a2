// ABOUTME: Service credentials and connection settings for the sync engine
// ABOUTME: Handles settings storage at XDG paths, environment overrides, and device ID generation
package sync

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/oklog/ulid/v2"
)

// Settings stores remote service credentials and connection details.
type Settings struct {
	Server   string `json:"server"`
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

// SettingsDir returns XDG-compliant directory for engine settings.
func SettingsDir() string {
	return filepath.Join(xdg.DataHome, "cardsync")
}

// SettingsPath returns XDG-compliant path for the settings file.
func SettingsPath() string {
	return filepath.Join(SettingsDir(), "settings.json")
}

// LoadSettings loads settings from the XDG data directory. Returns
// empty settings when the file doesn't exist. Environment variables
// override file values:
// - CARDSYNC_SERVER
// - CARDSYNC_TOKEN
// - CARDSYNC_DEVICE_ID.
func LoadSettings() (*Settings, error) {
	path := SettingsPath()

	settings := &Settings{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(settings)
			return settings, nil
		}
		return nil, fmt.Errorf("failed to open settings file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	applyEnvOverrides(settings)

	return settings, nil
}

func applyEnvOverrides(settings *Settings) {
	if server := os.Getenv("CARDSYNC_SERVER"); server != "" {
		settings.Server = server
	}
	if token := os.Getenv("CARDSYNC_TOKEN"); token != "" {
		settings.Token = token
	}
	if deviceID := os.Getenv("CARDSYNC_DEVICE_ID"); deviceID != "" {
		settings.DeviceID = deviceID
	}
}

// SaveSettings saves settings to the XDG data directory.
func SaveSettings(settings *Settings) error {
	path := SettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	// Write settings file with restricted permissions
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(settings); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return nil
}

// IsConfigured checks that the settings carry what the transport needs.
func (s *Settings) IsConfigured() bool {
	return s.Server != "" && s.Token != ""
}

// GenerateDeviceID generates a new ULID for device identification.
func GenerateDeviceID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
