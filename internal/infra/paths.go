package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as the logged-in user (no sudo required)
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root
	ExecModeSystem ExecMode = "system"
)

// Paths holds file locations based on execution mode.
type Paths struct {
	Mode       ExecMode
	DataDir    string // Where the encrypted journal and its key live
	ConfigPath string // TOML configuration file
	StatusPath string // JSON status snapshot
	LogPath    string // Rotated log file
	IsRoot     bool
}

// DetectPaths determines file locations based on effective UID.
func DetectPaths() *Paths {
	if os.Geteuid() == 0 {
		return &Paths{
			Mode:       ExecModeSystem,
			DataDir:    "/var/lib/screenguard",
			ConfigPath: "/etc/screenguard/config.toml",
			StatusPath: "/var/run/screenguard.status.json",
			LogPath:    "/var/log/screenguard.log",
			IsRoot:     true,
		}
	}
	return PathsForHome(GetRealUserHome())
}

// PathsForHome returns user-mode paths rooted at home.
func PathsForHome(home string) *Paths {
	dataDir := filepath.Join(home, ".screenguard")
	return &Paths{
		Mode:       ExecModeUser,
		DataDir:    dataDir,
		ConfigPath: filepath.Join(dataDir, "config.toml"),
		StatusPath: filepath.Join(dataDir, "status.json"),
		LogPath:    filepath.Join(dataDir, "screenguard.log"),
		IsRoot:     os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
