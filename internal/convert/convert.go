// Package convert wraps the dcm2niix command line tool to turn DICOM
// series into NIfTI volumes with their BIDS sidecar files.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrMissingTool means dcm2niix could not be found on PATH.
var ErrMissingTool = errors.New("dcm2niix is not installed")

// Converter invokes a located dcm2niix executable.
type Converter struct {
	executable string
}

// NewConverter locates dcm2niix on PATH.
func NewConverter() (*Converter, error) {
	path, err := exec.LookPath("dcm2niix")
	if err != nil {
		return nil, ErrMissingTool
	}
	return &Converter{executable: path}, nil
}

// Version reports the dcm2niix version string. Some dcm2niix releases
// exit non-zero on -v, so the exit status only matters when nothing was
// printed.
func (c *Converter) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, c.executable, "-v").CombinedOutput()
	text := strings.TrimSpace(string(output))
	if text == "" {
		if err != nil {
			return "", fmt.Errorf("could not run dcm2niix: %w", err)
		}
		return "", errors.New("dcm2niix printed no version")
	}
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line), nil
}

// Request describes one conversion run.
type Request struct {
	InputDir  string
	OutputDir string
	Filename  string // dcm2niix filename template, e.g. "%p_%s"
	Compress  bool
}

// Result lists the files a conversion produced.
type Result struct {
	Images   []string // NIfTI volumes
	Sidecars []string // JSON, bvec and bval files next to the volumes
}

// Convert runs dcm2niix over a directory of DICOM files. Output paths
// are recovered from the tool's stdout, then checked on disk for the
// sidecars dcm2niix writes alongside each volume.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}

	args := []string{"-o", req.OutputDir}
	if req.Filename != "" {
		args = append(args, "-f", req.Filename)
	}
	if req.Compress {
		args = append(args, "-z", "y")
	} else {
		args = append(args, "-z", "n")
	}
	args = append(args, req.InputDir)

	log.Debug().Str("executable", c.executable).Strs("args", args).Msg("running dcm2niix")
	output, err := exec.CommandContext(ctx, c.executable, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("dcm2niix failed: %s", strings.TrimSpace(string(output)))
	}

	images := parseConvertedPaths(string(output), req.Compress)
	if len(images) == 0 {
		return nil, fmt.Errorf("dcm2niix converted nothing in %s", req.InputDir)
	}

	result := &Result{Images: images}
	for _, image := range images {
		result.Sidecars = append(result.Sidecars, sidecarsFor(image)...)
	}
	log.Info().Int("images", len(result.Images)).Int("sidecars", len(result.Sidecars)).Msg("conversion complete")
	return result, nil
}

// parseConvertedPaths extracts output volumes from dcm2niix stdout.
// Conversion lines look like "Convert 176 DICOM as /out/name (dims)"
// where the path carries no extension.
func parseConvertedPaths(output string, compressed bool) []string {
	ext := ".nii"
	if compressed {
		ext = ".nii.gz"
	}

	var paths []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Convert ") {
			continue
		}
		_, rest, ok := strings.Cut(line, " as ")
		if !ok {
			continue
		}
		path := rest
		if idx := strings.Index(rest, " ("); idx >= 0 {
			path = rest[:idx]
		}
		paths = append(paths, strings.TrimSpace(path)+ext)
	}
	return paths
}

// sidecarsFor returns the sidecar files present next to a volume.
func sidecarsFor(image string) []string {
	base := strings.TrimSuffix(strings.TrimSuffix(image, ".gz"), ".nii")
	var sidecars []string
	for _, ext := range []string{".json", ".bvec", ".bval"} {
		path := base + ext
		if _, err := os.Stat(path); err == nil {
			sidecars = append(sidecars, path)
		}
	}
	return sidecars
}

// ConvertTree converts every leaf series directory under root, writing
// each series' volumes into a mirrored directory under outputRoot.
func (c *Converter) ConvertTree(ctx context.Context, root, outputRoot string, compress bool) ([]*Result, error) {
	seriesDirs, err := leafDirs(root)
	if err != nil {
		return nil, err
	}

	var results []*Result
	for _, dir := range seriesDirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			rel = filepath.Base(dir)
		}
		result, err := c.Convert(ctx, Request{
			InputDir:  dir,
			OutputDir: filepath.Join(outputRoot, rel),
			Compress:  compress,
		})
		if err != nil {
			log.Error().Err(err).Str("series", dir).Msg("conversion failed")
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// leafDirs lists directories under root that contain no subdirectories.
func leafDirs(root string) ([]string, error) {
	var leaves []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return err
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				return nil
			}
		}
		leaves = append(leaves, path)
		return nil
	})
	return leaves, err
}
