package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Application downloads folder created under the user's Downloads directory
const (
	DownloadsFolderName = "Lawran IDM"
)

// Characters stripped from filenames. Covers every character that is invalid
// on at least one supported platform, so one sanitized name works everywhere.
const (
	InvalidFilenameChars = `<>:"/\|?*`
)

// Filename length cap, kept well below common filesystem limits to leave
// room for temp prefixes and extensions.
const (
	MaxFilenameLength = 180
)

// SanitizeFilename strips platform-invalid characters from a media title so
// it can be used as a filename on any OS. Control characters are removed,
// trailing dots and spaces are trimmed, and overly long names are truncated.
// Sanitizing an already-sanitized name returns it unchanged.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(InvalidFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimSpace(b.String())
	cleaned = strings.TrimRight(cleaned, ". ")
	if len(cleaned) > MaxFilenameLength {
		// Cut on a rune boundary so a multi-byte character is never split.
		cut := MaxFilenameLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = strings.TrimRight(cleaned[:cut], ". ")
	}
	if cleaned == "" {
		cleaned = "untitled"
	}
	return cleaned
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// SyncFile opens the file, flushes it to stable storage and closes it. Called
// on final artifacts before they are reported ready, so a process kill right
// after completion cannot leave a truncated file behind.
func SyncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GetHomeDownloadsDir returns the application downloads directory under the
// user's standard Downloads folder, e.g. ~/Downloads/Lawran IDM.
func GetHomeDownloadsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads", DownloadsFolderName), nil
}
