package config

import "errors"

const DefaultHomeDir = "~/.conductor"

const (
	DefaultRunsTopic = "runs"

	DefaultMaxConcurrentRuns = 4
	DefaultPendingTimeoutMin = 120
	DefaultPollIntervalSec   = 5
	DefaultPollMaxAttempts   = 60
)

var (
	ErrHomeDirNotSet       = errors.New("conductor home directory is not set")
	ErrHomeDirExpandFailed = errors.New("failed to expand conductor home directory")
)
