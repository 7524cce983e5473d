package mesh

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// CalibrationData stores solved scanner transforms relative to a reference
// scanner, so a later run over the same reports can skip overlap search.
// InputHash is the InputFingerprint of the reports the transforms were
// solved from.
type CalibrationData struct {
	ReferenceScanner string               `json:"referenceScanner"`
	InputHash        string               `json:"inputHash"`
	Scanners         map[string]Transform `json:"scanners"`
	LastUpdated      int64                `json:"lastUpdated"`
}

// NewCalibrationData captures the transforms of every integrated scanner.
func NewCalibrationData(origin *Scanner, scanners []*Scanner) *CalibrationData {
	cal := &CalibrationData{
		ReferenceScanner: origin.Name,
		InputHash:        InputFingerprint(scanners),
		Scanners:         make(map[string]Transform, len(scanners)),
		LastUpdated:      time.Now().Unix(),
	}
	for _, s := range scanners {
		if s.Transform != nil {
			cal.Scanners[s.Name] = *s.Transform
		}
	}
	return cal
}

// LoadCalibration loads calibration data from a JSON cache file.
// A missing file is not an error and yields nil data.
func LoadCalibration(path string) (*CalibrationData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading calibration file: %w", err)
	}

	var cal CalibrationData
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parsing calibration file: %w", err)
	}
	if cal.Scanners == nil {
		cal.Scanners = make(map[string]Transform)
	}

	return &cal, nil
}

// SaveCalibration saves calibration data to a JSON cache file
func SaveCalibration(path string, cal *CalibrationData) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating calibration directory: %w", err)
	}

	cal.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling calibration data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing calibration file: %w", err)
	}

	return nil
}

// Apply presets cached transforms on scanners that do not have one yet.
// Nothing is applied when the cache was computed against a different
// reference or different reports. Entries with an invalid rotation are
// ignored. Returns the number of scanners preset.
func (c *CalibrationData) Apply(origin *Scanner, scanners []*Scanner) int {
	if c == nil || len(c.Scanners) == 0 {
		return 0
	}
	if c.ReferenceScanner != origin.Name {
		log.Printf("[CALIBRATION] cache reference %q does not match %q, ignoring cache", c.ReferenceScanner, origin.Name)
		return 0
	}
	if fp := InputFingerprint(scanners); c.InputHash != fp {
		log.Printf("[CALIBRATION] cache was solved for input %q, current input is %q, ignoring cache", c.InputHash, fp)
		return 0
	}

	applied := 0
	for _, s := range scanners {
		if s == origin || s.Transform != nil {
			continue
		}
		t, ok := c.Scanners[s.Name]
		if !ok {
			continue
		}
		if !t.Rotation.Valid() {
			log.Printf("[CALIBRATION] %s: cached rotation %v is invalid, ignoring", s.Name, t.Rotation)
			continue
		}
		s.Transform = &t
		applied++
	}
	return applied
}
