package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wavault.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wavault")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// SessionDBPath returns the whatsmeow credential store path.
func SessionDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// DataDir returns the root directory for the filesystem engine driver.
func DataDir(name string) string {
	return filepath.Join(Dir(name), "data")
}

// VaultDBPath returns the SQLite engine driver database path.
func VaultDBPath(name string) string {
	return filepath.Join(Dir(name), "vault.db")
}

// QRPath returns where the pairing QR image is rendered during auth.
func QRPath(name string) string {
	return filepath.Join(Dir(name), "qr.png")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wavaultd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
