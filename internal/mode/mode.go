// Package mode is the READONLY/PAPER/LIVE safety gate. Modes are written by
// the operator; nothing in this package transitions between them.
package mode

import (
	"errors"
	"fmt"
	"strings"
)

// Mode governs whether decisions may be applied
type Mode string

const (
	ReadOnly Mode = "READONLY"
	Paper    Mode = "PAPER"
	Live     Mode = "LIVE"
)

// ErrInvalidMode is returned by Parse for unknown values
var ErrInvalidMode = errors.New("invalid run mode")

// Config is the process-scoped gate configuration
type Config struct {
	Mode                     Mode `yaml:"mode" json:"mode"`
	RequireConfirmFirstEnter bool `yaml:"require_confirm_first_enter" json:"require_confirm_first_enter"`
}

// Default is READONLY with first-ENTER confirmation required
func Default() Config {
	return Config{Mode: ReadOnly, RequireConfirmFirstEnter: true}
}

// Parse accepts a mode name case-insensitively
func Parse(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ReadOnly, Paper, Live:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want READONLY, PAPER or LIVE)", ErrInvalidMode, s)
	}
}

// Validate rejects a config with an unknown mode
func (c Config) Validate() error {
	_, err := Parse(string(c.Mode))
	return err
}

// CanApply is true only in PAPER and LIVE
func CanApply(cfg Config) bool {
	return cfg.Mode == Paper || cfg.Mode == Live
}

// IsLive is true only in LIVE
func IsLive(cfg Config) bool {
	return cfg.Mode == Live
}

// BlockedReason explains why decisions are not applied, or "" when they are.
func BlockedReason(cfg Config) string {
	if CanApply(cfg) {
		return ""
	}
	return fmt.Sprintf("mode %s blocks decision application", cfg.Mode)
}
