// Package config holds runtime settings for the sync core and its CLI.
// Values come from defaults, overlaid by an optional JSON file; the CLI
// applies flag overrides on top.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DriveConfig points at the Drive-style provider endpoints.
type DriveConfig struct {
	AuthURLBase    string
	TokenURL       string
	Scope          string
	RemoteFileName string
}

// S3Config points at an S3-compatible provider.
type S3Config struct {
	BaseEndpoint string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
}

// Config is the runtime configuration.
//
// Provider selects the active remote backend: "drive" or "s3". Only one is
// active at a time.
type Config struct {
	DataDir         string
	StorePath       string
	StateDBPath     string
	KeyfilePath     string
	BackupsDir      string
	BackupRetention int
	LogPath         string

	Provider string
	Drive    DriveConfig
	S3       S3Config

	NetworkTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults rooted in the user
// config directory.
func (c *Config) LoadDefaults() {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	c.DataDir = filepath.Join(base, "puffin")
	c.StorePath = filepath.Join(c.DataDir, "puffin.db")
	c.StateDBPath = filepath.Join(c.DataDir, "sync-state.db")
	c.KeyfilePath = filepath.Join(c.DataDir, "state.key")
	c.BackupsDir = filepath.Join(c.DataDir, "backups")
	c.BackupRetention = 10
	c.LogPath = filepath.Join(c.DataDir, "logs", "sync.log")

	c.Provider = "drive"
	c.Drive = DriveConfig{
		AuthURLBase:    "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:       "https://oauth2.googleapis.com/token",
		Scope:          "https://www.googleapis.com/auth/drive.file",
		RemoteFileName: "puffin-backup.db",
	}

	c.NetworkTimeout = 30 * time.Second
}

// LoadConfig constructs a Config from defaults overlaid with the JSON file
// at path (skipped when path is empty).
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirs creates the directories the sync core writes into.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.BackupsDir, filepath.Dir(c.LogPath)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}
