package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/puffinapp/puffin-sync/internal/timex"
)

// jsonConfig is the DTO used exclusively for JSON unmarshalling. Durations
// accept either "30s"-style strings or integer nanoseconds via timex.
// Zero-valued fields leave the existing Config value untouched so the file
// only needs to name what it overrides.
type jsonConfig struct {
	DataDir         string `json:"data_dir"`
	StorePath       string `json:"store_path"`
	StateDBPath     string `json:"state_db_path"`
	KeyfilePath     string `json:"keyfile_path"`
	BackupsDir      string `json:"backups_dir"`
	BackupRetention *int   `json:"backup_retention"`
	LogPath         string `json:"log_path"`

	Provider string `json:"provider"`

	Drive struct {
		AuthURLBase    string `json:"auth_url_base"`
		TokenURL       string `json:"token_url"`
		Scope          string `json:"scope"`
		RemoteFileName string `json:"remote_file_name"`
	} `json:"drive"`

	S3 struct {
		BaseEndpoint string `json:"base_endpoint"`
		Region       string `json:"region"`
		Bucket       string `json:"bucket"`
		Prefix       string `json:"prefix"`
		AccessKey    string `json:"access_key"`
		SecretKey    string `json:"secret_key"`
	} `json:"s3"`

	NetworkTimeout timex.Duration `json:"network_timeout"`
}

func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	overlay(&cfg.DataDir, jc.DataDir)
	overlay(&cfg.StorePath, jc.StorePath)
	overlay(&cfg.StateDBPath, jc.StateDBPath)
	overlay(&cfg.KeyfilePath, jc.KeyfilePath)
	overlay(&cfg.BackupsDir, jc.BackupsDir)
	if jc.BackupRetention != nil {
		cfg.BackupRetention = *jc.BackupRetention
	}
	overlay(&cfg.LogPath, jc.LogPath)

	overlay(&cfg.Provider, jc.Provider)

	overlay(&cfg.Drive.AuthURLBase, jc.Drive.AuthURLBase)
	overlay(&cfg.Drive.TokenURL, jc.Drive.TokenURL)
	overlay(&cfg.Drive.Scope, jc.Drive.Scope)
	overlay(&cfg.Drive.RemoteFileName, jc.Drive.RemoteFileName)

	overlay(&cfg.S3.BaseEndpoint, jc.S3.BaseEndpoint)
	overlay(&cfg.S3.Region, jc.S3.Region)
	overlay(&cfg.S3.Bucket, jc.S3.Bucket)
	overlay(&cfg.S3.Prefix, jc.S3.Prefix)
	overlay(&cfg.S3.AccessKey, jc.S3.AccessKey)
	overlay(&cfg.S3.SecretKey, jc.S3.SecretKey)

	if jc.NetworkTimeout.Duration != 0 {
		cfg.NetworkTimeout = time.Duration(jc.NetworkTimeout.Duration)
	}

	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
