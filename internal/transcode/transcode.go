// Package transcode maintains a persistent table mapping subject
// identifiers to random 12-digit pseudonymous codes. Transcoding the
// same identifier twice always yields the same code.
package transcode

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/rs/zerolog/log"
)

// Codes are 12-digit numbers so they can never collide with a leading
// zero or be mistaken for a short local identifier.
const (
	codeMin = 100_000_000_000
	codeMax = 999_999_999_999
)

// Table is a loaded transcoding table bound to its file.
type Table struct {
	path  string
	codes map[string]string
	used  map[string]bool
	rng   *rand.Rand
}

// LoadTable reads a transcoding table from disk. The file must exist,
// even if it only holds an empty object: requiring explicit creation
// avoids silently starting a fresh table on a typoed path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid transcoding table: %w", path, err)
	}

	codes := make(map[string]string)
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("could not parse transcoding table: %w", err)
	}

	used := make(map[string]bool, len(codes))
	for _, code := range codes {
		used[code] = true
	}
	return &Table{path: path, codes: codes, used: used}, nil
}

// Code returns the code for a subject identifier if one exists.
func (t *Table) Code(sid string) (string, bool) {
	code, ok := t.codes[sid]
	return code, ok
}

// Len returns the number of transcoded identifiers.
func (t *Table) Len() int {
	return len(t.codes)
}

// Transcode assigns codes to any identifiers that lack one and returns
// the codes in input order.
func (t *Table) Transcode(sids []string) []string {
	result := make([]string, len(sids))
	created := 0
	for i, sid := range sids {
		code, ok := t.codes[sid]
		if !ok {
			code = t.generate()
			t.codes[sid] = code
			t.used[code] = true
			created++
		}
		result[i] = code
	}
	if created > 0 {
		log.Info().Int("new", created).Int("total", len(t.codes)).Msg("transcoded subject identifiers")
	}
	return result
}

// generate draws codes until one is free. Codes already assigned to
// another identifier are rejected.
func (t *Table) generate() string {
	for {
		code := fmt.Sprintf("%d", t.randInt64(codeMin, codeMax))
		if !t.used[code] {
			return code
		}
	}
}

func (t *Table) randInt64(min, max int64) int64 {
	if t.rng != nil {
		return t.rng.Int63n(max-min+1) + min
	}
	return rand.Int63n(max-min+1) + min
}

// Save writes the table back to its file.
func (t *Table) Save() error {
	data, err := json.MarshalIndent(t.codes, "", "    ")
	if err != nil {
		return fmt.Errorf("could not marshal transcoding table: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("could not write transcoding table: %w", err)
	}
	return nil
}
