package types

import (
	"fmt"
	"strings"
	"time"
)

// Account is one of the two platform identities sharing the installation.
type Account string

const (
	Steam Account = "steam"
	Epic  Account = "epic"
)

func Accounts() []Account {
	return []Account{Steam, Epic}
}

func ParseAccount(s string) (Account, error) {
	switch Account(strings.ToLower(strings.TrimSpace(s))) {
	case Steam:
		return Steam, nil
	case Epic:
		return Epic, nil
	}
	return "", &ConfigurationError{Field: "account", Reason: fmt.Sprintf("unknown account %q, expected steam or epic", s)}
}

func (a Account) Title() string {
	switch a {
	case Steam:
		return "Steam"
	case Epic:
		return "Epic"
	}
	return string(a)
}

// AccountPaths are the per-account locations the coordinator works against.
type AccountPaths struct {
	SaveDir        string `json:"save_path" yaml:"save_path"`
	ExecutablePath string `json:"rocket_league_path" yaml:"rocket_league_path"`
}

// ConfigurationError means a required path is missing, invalid or collides
// with another configured path. Nothing has been touched on disk.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError means the backup slot is not in the state the operation
// requires.
type ConflictError struct {
	Slot   string
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

type NotFoundError struct {
	What string
	Path string
}

func (e *NotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s not set", e.What)
	}
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// ProcessTimeoutError means the game did not write a fresh save generation
// inside the wait window.
type ProcessTimeoutError struct {
	SaveDir string
	Timeout time.Duration
}

func (e *ProcessTimeoutError) Error() string {
	return fmt.Sprintf("no new save generation appeared in %s within %s", e.SaveDir, e.Timeout)
}

// UnexpectedError wraps an OS level failure hit while an operation was in
// flight.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err.Error())
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}
