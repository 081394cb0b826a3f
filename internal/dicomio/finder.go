package dicomio

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// dicomExtensions are the file extensions treated as DICOM without
// sniffing the content.
var dicomExtensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
	".ima":   true,
}

// excludedNames are filenames never considered DICOM.
var excludedNames = map[string]bool{
	"DICOMDIR":       true,
	".progress.json": true,
	".DS_Store":      true,
	"Thumbs.db":      true,
	"desktop.ini":    true,
}

// excludedExtensions are extensions never considered DICOM. Everything
// else without a recognized extension gets a magic-byte check.
var excludedExtensions = map[string]bool{
	".json": true,
	".txt":  true,
	".csv":  true,
	".log":  true,
	".md":   true,
	".xml":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".pdf":  true,
	".zip":  true,
	".gz":   true,
	".tar":  true,
	".nii":  true,
	".bvec": true,
	".bval": true,
}

// excludedDirs are directory names skipped entirely.
var excludedDirs = map[string]bool{
	".git":        true,
	"__pycache__": true,
	".idea":       true,
	".vscode":     true,
}

// FindFiles locates the DICOM files under a path. Files are recognized
// by extension or, failing that, by the DICM magic bytes. The result is
// sorted for deterministic processing order.
func FindFiles(inputPath string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		if info.IsDir() {
			if excludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			if !recursive && path != inputPath {
				return filepath.SkipDir
			}
			return nil
		}

		if excludedNames[info.Name()] {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case dicomExtensions[ext]:
			files = append(files, path)
		case excludedExtensions[ext]:
		case hasDicomMagicBytes(path):
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.Walk(inputPath, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// hasDicomMagicBytes reports whether a file carries "DICM" at byte
// offset 128, where the preamble ends.
func hasDicomMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	if _, err := io.ReadFull(file, header); err != nil {
		return false
	}
	return string(header[128:132]) == "DICM"
}
