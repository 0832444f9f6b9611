// Package inputs turns command-line paths into the ordered, de-duplicated
// list of video files a batch runs over.
package inputs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var VideoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm"}

type Rejected struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type Result struct {
	Files    []string   `json:"files"`
	Rejected []Rejected `json:"rejected,omitempty"`
}

// IsVideoFile checks the extension only, case-insensitively.
func IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(VideoExtensions, ext)
}

// Collect resolves each argument to an absolute path. Directories expand to
// the video files directly inside them, sorted by name. Order of first
// appearance is kept and repeats are dropped.
func Collect(args []string) Result {
	var res Result
	seen := map[string]bool{}
	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		res.Files = append(res.Files, path)
	}

	for _, raw := range args {
		arg := strings.TrimSpace(raw)
		if arg == "" {
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Path: arg, Reason: err.Error()})
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Path: abs, Reason: "not found"})
			continue
		}
		if info.IsDir() {
			files, err := videosIn(abs)
			if err != nil {
				res.Rejected = append(res.Rejected, Rejected{Path: abs, Reason: err.Error()})
				continue
			}
			if len(files) == 0 {
				res.Rejected = append(res.Rejected, Rejected{Path: abs, Reason: "no video files in directory"})
			}
			for _, f := range files {
				add(f)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			res.Rejected = append(res.Rejected, Rejected{Path: abs, Reason: "not a regular file"})
			continue
		}
		if !IsVideoFile(abs) {
			res.Rejected = append(res.Rejected, Rejected{Path: abs, Reason: "unsupported extension"})
			continue
		}
		add(abs)
	}
	return res
}

func videosIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsVideoFile(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
