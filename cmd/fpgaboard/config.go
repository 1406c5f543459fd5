// go-fpgaboard
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fpgaboard.
//
// go-fpgaboard is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fpgaboard is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fpgaboard; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "FPGABOARD"
	appDirName     = "fpgaboard"

	cfgKeyDevice           = "device"
	cfgKeyListen           = "listen"
	cfgKeyHistoryDB        = "history_db"
	cfgKeyValidateProjects = "validate_projects"
	cfgKeyDebug            = "debug"
	cfgKeySessionLog       = "session_log"
	cfgKeyMaxWords         = "max_words"
	cfgKeyResponseTimeout  = "response_timeout"

	defaultListen          = "127.0.0.1:5000"
	defaultResponseTimeout = 2 * time.Second
	defaultHistoryFile     = "history.db"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# fpgaboard configuration

# Board to use: sim, usb, usb:VID:PID, spi:<port> or a serial port path.
# Empty means auto-detect.
device: ""

# Address of the HTTP API served by "fpgaboard serve".
listen: 127.0.0.1:5000

# Reject malformed .hwproj files on load.
validate_projects: false

# Largest buffer, in words, InitIO accepts. 0 means the protocol limit.
max_words: 0

# How long to wait for each board response.
response_timeout: 2s

# Recently opened projects (default: <config dir>/history.db).
# history_db:

# Directory for timestamped debug session logs. Empty disables them.
# session_log:
`

// settings is the resolved configuration of one CLI invocation.
type settings struct {
	Device           string
	Listen           string
	HistoryDB        string
	SessionLog       string
	ConfigDir        string
	MaxWords         int
	ResponseTimeout  time.Duration
	ValidateProjects bool
	Debug            bool
}

// resolveConfigDir picks the configuration directory:
// --config-dir flag > FPGABOARD_CONFIG_DIR > user config dir.
func resolveConfigDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(envPrefix + "_CONFIG_DIR"); env != "" {
		return env, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. Environment variables FPGABOARD_<KEY> override
// the file.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyDevice, "")
	v.SetDefault(cfgKeyListen, defaultListen)
	v.SetDefault(cfgKeyHistoryDB, filepath.Join(configDir, defaultHistoryFile))
	v.SetDefault(cfgKeyValidateProjects, false)
	v.SetDefault(cfgKeyDebug, false)
	v.SetDefault(cfgKeySessionLog, "")
	v.SetDefault(cfgKeyMaxWords, 0)
	v.SetDefault(cfgKeyResponseTimeout, defaultResponseTimeout)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// settingsFrom extracts typed settings from v.
func settingsFrom(v *viper.Viper, configDir string) (settings, error) {
	s := settings{
		ConfigDir:        configDir,
		Device:           strings.TrimSpace(v.GetString(cfgKeyDevice)),
		Listen:           v.GetString(cfgKeyListen),
		HistoryDB:        v.GetString(cfgKeyHistoryDB),
		SessionLog:       v.GetString(cfgKeySessionLog),
		MaxWords:         v.GetInt(cfgKeyMaxWords),
		ResponseTimeout:  v.GetDuration(cfgKeyResponseTimeout),
		ValidateProjects: v.GetBool(cfgKeyValidateProjects),
		Debug:            v.GetBool(cfgKeyDebug),
	}
	if s.MaxWords < 0 {
		return settings{}, fmt.Errorf("%s must not be negative, got %d", cfgKeyMaxWords, s.MaxWords)
	}
	if s.ResponseTimeout <= 0 {
		return settings{}, fmt.Errorf("%s must be positive, got %s", cfgKeyResponseTimeout, s.ResponseTimeout)
	}
	return s, nil
}
