// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package common holds code shared by subcommands.
package common

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger returns an hclog instance with the given level and JSON
// logging enabled/disabled, or an error if level is invalid.
func Logger(level string, jsonLogging bool) (hclog.Logger, error) {
	parsedLevel := hclog.LevelFromString(level)
	if parsedLevel == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level: %s", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		JSONFormat: jsonLogging,
		Level:      parsedLevel,
		Output:     os.Stderr,
	}), nil
}
