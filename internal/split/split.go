// Package split reorganizes a directory of DICOM files into one
// directory per series, naming each series directory after its cleaned
// description, echo time and zero-padded series number, and each file
// after its SOP instance UID.
package split

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"dcmkit/internal/dataset"
	"dcmkit/internal/dicomio"
)

var (
	characterSetTag  = dataset.Tag{Group: 0x0008, Element: 0x0005}
	sopInstanceTag   = dataset.Tag{Group: 0x0008, Element: 0x0018}
	studyDateTag     = dataset.Tag{Group: 0x0008, Element: 0x0020}
	studyTimeTag     = dataset.Tag{Group: 0x0008, Element: 0x0030}
	descriptionTag   = dataset.Tag{Group: 0x0008, Element: 0x103e}
	echoTimeTag      = dataset.Tag{Group: 0x0018, Element: 0x0081}
	seriesNumberTag  = dataset.Tag{Group: 0x0020, Element: 0x0011}
)

// expectedCharacterSet is the only attribute encoding handled; strings
// in other encodings would produce garbled directory names.
const expectedCharacterSet = "ISO_IR 100"

// illegalChars are replaced in series descriptions before they become
// path components. Underscore is included because downstream tooling
// uses it as a separator.
const illegalChars = "\\/:*?'<>|_ \t\r\n\x00[],;"

// Config holds the split configuration
type Config struct {
	InputDir  string
	OutputDir string
	// SkipNonDicom skips unreadable files instead of failing the run.
	SkipNonDicom bool
	// CheckSession verifies all files share one acquisition datetime and
	// groups by series; when false everything lands in one directory.
	CheckSession bool
	// CheckEncoding skips files whose character set is not ISO_IR 100.
	CheckEncoding bool
}

// Stats holds split statistics
type Stats struct {
	Copied  int
	Skipped int
}

// Splitter carries the per-run session state.
type Splitter struct {
	cfg     Config
	session string
}

// New creates a splitter for one run.
func New(cfg Config) *Splitter {
	return &Splitter{cfg: cfg}
}

// Run splits every file under the input directory. Files are copied,
// never moved; when two inputs map to the same output file the most
// recently modified one wins.
func (s *Splitter) Run() (*Stats, error) {
	var files []string
	err := filepath.Walk(s.cfg.InputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not scan input directory: %w", err)
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}

	stats := &Stats{}
	bar := progressbar.Default(int64(len(files)), "splitting")
	for _, filePath := range files {
		bar.Add(1)
		copied, err := s.splitFile(filePath)
		if err != nil {
			if s.cfg.SkipNonDicom {
				log.Warn().Err(err).Str("file", filePath).Msg("skipping file")
				stats.Skipped++
				continue
			}
			return nil, err
		}
		if copied {
			stats.Copied++
		} else {
			stats.Skipped++
		}
	}

	log.Info().Int("copied", stats.Copied).Int("skipped", stats.Skipped).Msg("split complete")
	return stats, nil
}

// splitFile places one file in its series directory. It reports whether
// the file was copied.
func (s *Splitter) splitFile(filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return false, err
	}

	ds, err := dicomio.ReadFileMetadataOnly(filePath)
	if err != nil {
		return false, fmt.Errorf("%q is not a valid DICOM file: %w", filePath, err)
	}

	if s.cfg.CheckEncoding {
		charset := topLevelString(ds, characterSetTag)
		switch charset {
		case expectedCharacterSet:
		case "":
			log.Warn().Str("file", filePath).Msg("cannot check encoding, character set attribute missing")
		default:
			log.Warn().Str("file", filePath).Str("charset", charset).Msg("unexpected encoding, file ignored")
			return false, nil
		}
	}

	sopInstanceUID := topLevelString(ds, sopInstanceTag)
	if sopInstanceUID == "" {
		return false, fmt.Errorf("%q does not contain a SOP instance UID", filePath)
	}

	description := cleanup(topLevelString(ds, descriptionTag))
	if s.cfg.CheckSession {
		session := topLevelString(ds, studyDateTag) + topLevelString(ds, studyTimeTag)
		if s.session == "" {
			s.session = session
		} else if s.session != session {
			log.Warn().Str("first", s.session).Str("current", session).Msg("two sessions detected in input folder")
			if description != "" {
				description += "_" + session
			} else {
				description = session
			}
		}
	}

	seriesDir := "all_dicoms"
	if s.cfg.CheckSession {
		echoTime := topLevelString(ds, echoTimeTag)
		if echoTime == "" {
			echoTime = "NA"
		}
		number := padLeft(topLevelString(ds, seriesNumberTag), 6)
		if description != "" {
			seriesDir = description + "_" + echoTime + "_" + number
		} else {
			seriesDir = echoTime + "_" + number
		}
	}

	outputPath := filepath.Join(s.cfg.OutputDir, seriesDir, sopInstanceUID+".dcm")
	if existing, err := os.Stat(outputPath); err == nil {
		// Keep the most recent duplicate.
		if !existing.ModTime().Before(info.ModTime()) {
			return false, nil
		}
	}
	if err := copyFile(filePath, outputPath, info.ModTime()); err != nil {
		return false, err
	}
	return true, nil
}

// topLevelString reads the first string of a top-level attribute.
func topLevelString(ds *dataset.Dataset, t dataset.Tag) string {
	e, ok := ds.Get(t)
	if !ok {
		return ""
	}
	switch v := e.Value().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	case []int:
		if len(v) > 0 {
			return fmt.Sprintf("%d", v[0])
		}
	}
	return ""
}

// cleanup replaces path-hostile characters in an attribute value.
func cleanup(attribute string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalChars, r) {
			return '-'
		}
		return r
	}, attribute)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func copyFile(src, dst string, mtime time.Time) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return err
	}
	return os.Chtimes(dst, mtime, mtime)
}
