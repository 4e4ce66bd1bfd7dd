package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/nadavital/cauldron/internal/flagx"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Duration fields are integers in minutes. After unmarshalling,
// non-zero values are copied into the runtime Config.
type JsonConfig struct {
	Environment            string `json:"environment"`
	DatabaseDSN            string `json:"database_dsn"`
	AccountID              string `json:"account_id"`
	SessionSecret          string `json:"session_secret"`
	SessionToken           string `json:"session_token"`
	SessionValidityMinutes int    `json:"session_validity_minutes"`
	LocalStorePath         string `json:"local_store_path"`
	SweepIntervalMinutes   int    `json:"sweep_interval_minutes"`
	S3RootUser             string `json:"s3_root_user"`
	S3RootPassword         string `json:"s3_root_password"`
	S3Bucket               string `json:"s3_bucket"`
	S3Region               string `json:"s3_region"`
	S3BaseEndpoint         string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c or -config command-line flags;
// when neither is set no JSON file is loaded. Fields absent from the file
// keep their current values. If the file cannot be read or contains invalid
// JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.Environment != "" {
		config.Environment = c.Environment
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.AccountID != "" {
		config.AccountID = c.AccountID
	}
	if c.SessionSecret != "" {
		config.SessionSecret = c.SessionSecret
	}
	if c.SessionToken != "" {
		config.SessionToken = c.SessionToken
	}
	if c.SessionValidityMinutes != 0 {
		config.SessionValidity = time.Duration(c.SessionValidityMinutes) * time.Minute
	}
	if c.LocalStorePath != "" {
		config.LocalStorePath = c.LocalStorePath
	}
	if c.SweepIntervalMinutes != 0 {
		config.SweepInterval = time.Duration(c.SweepIntervalMinutes) * time.Minute
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
