package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lawran/lawran-downloader/internal/progress"
)

const dateLayout = "January 2, 2006"

// Entry describes one completed download in the library directory.
type Entry struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Size     string `json:"size"`
	Date     string `json:"date"`
	Type     string `json:"type"`
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".weba": true,
	".opus": true,
	".ogg":  true,
	".wav":  true,
	".flac": true,
}

// List returns the completed downloads under dir, newest first. Temp files
// and subdirectories are excluded; playlist items live in subdirectories and
// are listed through their parent folder in the UI instead.
func List(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	type fileInfo struct {
		name    string
		size    int64
		modTime int64
		entry   Entry
	}

	files := make([]fileInfo, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			name:    de.Name(),
			size:    info.Size(),
			modTime: info.ModTime().UnixNano(),
			entry: Entry{
				Filename: de.Name(),
				Size:     progress.FormatBytes(info.Size()),
				Date:     info.ModTime().Format(dateLayout),
				Type:     typeOf(de.Name()),
			},
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime != files[j].modTime {
			return files[i].modTime > files[j].modTime
		}
		return files[i].name < files[j].name
	})

	entries := make([]Entry, len(files))
	for i, f := range files {
		f.entry.ID = i + 1
		entries[i] = f.entry
	}
	return entries, nil
}

func typeOf(filename string) string {
	if audioExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "audio"
	}
	return "video"
}
