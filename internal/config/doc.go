/*
Package config provides configuration management for the practice cache.

Configuration is layered, each source overriding the previous one:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (PRACTICE_*)                      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("practice.yaml"); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

Configuration file format:

	global:
	  log_level: INFO
	  log_format: text

	cache:
	  max_age: 5m
	  sync_interval: 5s
	  queue_size: 256
	  warm_on_start: true

	storage:
	  backend: file          # none, memory, file or s3
	  schema_version: 1
	  file:
	    directory: practice-data
	    compression: true

	exercise:
	  max_entries: 200
	  default_count: 20
	  difficulty: medium
	  priorities:
	    mots: 1
	    phrases: 2

	validation:
	  max_entries: 50
	  batch_size: 32
	  preload_depth: 3

	monitoring:
	  metrics:
	    enabled: true
	    port: 9090
	  health:
	    check_interval: 30s
	    error_threshold: 1
	    unavailable_threshold: 3

Environment variable mapping:

	PRACTICE_LOG_LEVEL="DEBUG"
	PRACTICE_STORAGE_BACKEND="s3"
	PRACTICE_S3_BUCKET="practice-progress"
	PRACTICE_S3_ENDPOINT="http://localhost:9000"
	PRACTICE_CACHE_MAX_AGE="10m"

Load errors carry the CONFIG_LOAD code and validation errors the
CONFIG_VALIDATION code, with the offending field in the error details.
*/
package config
