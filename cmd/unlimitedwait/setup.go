// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/facade"
)

// loadSettings reads --config when given and applies the persistent flag
// overrides on top.
func loadSettings(cmd *cobra.Command) (control.Settings, error) {
	s := control.DefaultSettings()
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		var err error
		if s, err = control.LoadSettings(path); err != nil {
			return control.Settings{}, err
		}
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		s.Backend = backend
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		s.LogLevel = level
	}
	if err := s.Validate(); err != nil {
		return control.Settings{}, err
	}
	return s, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}

// session bundles what every subcommand needs.
type session struct {
	settings control.Settings
	log      zerolog.Logger
	waiter   *facade.Waiter
	objects  objectSource
}

func newSession(cmd *cobra.Command) (*session, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(s.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg := facade.DefaultConfig()
	cfg.Settings = s
	cfg.Logger = log
	w, err := facade.New(cfg)
	if err != nil {
		return nil, err
	}
	objs, err := newObjectSource(s.Backend, w.Platform())
	if err != nil {
		return nil, err
	}
	return &session{settings: s, log: log, waiter: w, objects: objs}, nil
}
