package oif

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Settings holds the parsed OIF main settings document: a Windows INI
// dialect stored as UTF-16. Section and key lookups are exact-match and
// case-sensitive, matching how the acquisition software writes them.
type Settings struct {
	sections map[string]map[string]string
}

// Well-known section and key names used by the acquisition software.
// ImageCaputreDate is misspelled in the format itself.
const (
	sectionAcquisition = "Acquisition Parameters Common"
	sectionReference   = "Reference Image Parameter"
	sectionAxisCommon  = "Axis Parameter Common"

	keyCaptureDate   = "ImageCaputreDate"
	keyValidBits     = "ValidBitCounts"
	keyImageWidth    = "ImageWidth"
	keyImageHeight   = "ImageHeight"
	keyWidthConvert  = "WidthConvertValue"
	keyWidthUnit     = "WidthUnit"
	keyHeightConvert = "HeightConvertValue"
	keyHeightUnit    = "HeightUnit"
	keyAxisOrder     = "AxisOrder"
	keyInterval      = "Interval"
	keyUnitName      = "UnitName"
)

// ParseSettings reads an OIF main settings document. The input is
// transcoded from UTF-16 (either endianness, BOM tolerated) before line
// parsing. Lines outside any section and lines without '=' are skipped.
func ParseSettings(r io.Reader) (*Settings, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	scanner := bufio.NewScanner(transform.NewReader(r, dec))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s := &Settings{sections: make(map[string]map[string]string)}
	var current map[string]string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			current = s.sections[name]
			if current == nil {
				current = make(map[string]string)
				s.sections[name] = current
			}
			continue
		}
		if current == nil {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		current[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if len(s.sections) == 0 {
		return nil, fmt.Errorf("%w: settings document has no sections", ErrFormat)
	}
	return s, nil
}

// unquote strips one matching pair of surrounding quotes. OIF string
// values are usually double-quoted; some writers use single quotes.
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Lookup returns the raw value for a section/key pair.
func (s *Settings) Lookup(section, key string) (string, bool) {
	sec, ok := s.sections[section]
	if !ok {
		return "", false
	}
	v, ok := sec[key]
	return v, ok
}

// Int returns a section/key value parsed as an integer.
func (s *Settings) Int(section, key string) (int, bool) {
	v, ok := s.Lookup(section, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Sections returns the number of parsed sections.
func (s *Settings) Sections() int {
	return len(s.sections)
}

// captureDate returns the acquisition timestamp, if recorded.
func (s *Settings) captureDate() (string, bool) {
	return s.Lookup(sectionAcquisition, keyCaptureDate)
}

// convert joins a calibration value with its unit ("0.621 um").
func (s *Settings) convert(valueKey, unitKey string) (string, bool) {
	v, ok := s.Lookup(sectionReference, valueKey)
	if !ok {
		return "", false
	}
	u, ok := s.Lookup(sectionReference, unitKey)
	if !ok {
		return v, true
	}
	return v + " " + u, true
}

// depthConvert returns the Z step size with its unit. The Z axis section
// is located through AxisOrder, the way the acquisition software links
// axis letters to their numbered parameter sections.
func (s *Settings) depthConvert() (string, bool) {
	order, ok := s.Lookup(sectionAxisCommon, keyAxisOrder)
	if !ok {
		return "", false
	}
	zPos := strings.IndexByte(order, 'Z')
	if zPos < 0 {
		return "", false
	}
	section := fmt.Sprintf("Axis %d Parameters Common", zPos)
	v, ok := s.Lookup(section, keyInterval)
	if !ok {
		return "", false
	}
	u, ok := s.Lookup(section, keyUnitName)
	if !ok {
		return v, true
	}
	return v + " " + u, true
}
