package config

import (
	"fmt"

	"github.com/nao1215/imgshare/internal/model"
)

// Configuration validation errors returned by Config.Validate.
// All of them wrap model.ErrConfiguration, which the CLI treats as fatal.
var (
	// ErrNoTarget is returned when a scan has nothing to process: no target
	// argument, no URL list entries and no local images.
	ErrNoTarget = fmt.Errorf("%w: no target specified: pass URLs, --list or --images", model.ErrConfiguration)

	// ErrInvalidMinImageSize is returned when MinImageSize does not exceed
	// MinImageSizeFloor.
	ErrInvalidMinImageSize = fmt.Errorf("%w: min image size must be greater than %d", model.ErrConfiguration, MinImageSizeFloor)

	// ErrInvalidMaxThreads is returned when MaxThreads is outside (0, MaxThreadsCeiling).
	ErrInvalidMaxThreads = fmt.Errorf("%w: threads must be between 1 and %d", model.ErrConfiguration, MaxThreadsCeiling-1)

	// ErrInvalidMaxImgPerDomain is returned when MaxImgPerDomain is not positive.
	ErrInvalidMaxImgPerDomain = fmt.Errorf("%w: images per page must be positive", model.ErrConfiguration)

	// ErrInvalidTimeout is returned when the per-call timeout is not positive.
	ErrInvalidTimeout = fmt.Errorf("%w: invalid timeout: must be positive", model.ErrConfiguration)

	// ErrNoDataFolder is returned when no live corpus folder can be determined.
	ErrNoDataFolder = fmt.Errorf("%w: data folder is not set", model.ErrConfiguration)

	// ErrProxyRequired is returned when an anonymized target (.onion, .i2p)
	// is scheduled but no proxy is configured and embedded Tor is off.
	ErrProxyRequired = fmt.Errorf("%w: anonymized targets need --proxy or --embedded-tor", model.ErrConfiguration)

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = fmt.Errorf("%w: configuration file not found", model.ErrConfiguration)
)
