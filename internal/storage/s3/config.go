package s3

import (
	"time"
)

// Config represents S3 backend configuration
type Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// NewDefaultConfig returns the configuration used for a bucket in us-east-1.
func NewDefaultConfig() *Config {
	return &Config{
		Prefix:         "practicecache",
		Region:         "us-east-1",
		MaxRetries:     3,
		RequestTimeout: 10 * time.Second,
	}
}
