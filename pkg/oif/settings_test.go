package oif

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

// utf16Bytes encodes ASCII text as UTF-16LE with a BOM, the way the
// acquisition software writes settings documents.
func utf16Bytes(t *testing.T, text string) []byte {
	t.Helper()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(text))
	require.NoError(t, err)
	return data
}

func TestParseSettings(t *testing.T) {
	text := "[Version Info]\r\n" +
		"FileVersion=\"2.0.0.0\"\r\n" +
		"[Reference Image Parameter]\r\n" +
		"ValidBitCounts=12\r\n" +
		"HeightConvertValue=1.656\r\n" +
		"HeightUnit=\"um\"\r\n" +
		"[Acquisition Parameters Common]\r\n" +
		"ImageCaputreDate='2019-03-01 14:22:01'\r\n"

	s, err := ParseSettings(bytes.NewReader(utf16Bytes(t, text)))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Sections())

	t.Run("DoubleQuotesStripped", func(t *testing.T) {
		v, ok := s.Lookup("Version Info", "FileVersion")
		require.True(t, ok)
		assert.Equal(t, "2.0.0.0", v)
	})

	t.Run("SingleQuotesStripped", func(t *testing.T) {
		v, ok := s.Lookup("Acquisition Parameters Common", "ImageCaputreDate")
		require.True(t, ok)
		assert.Equal(t, "2019-03-01 14:22:01", v)
	})

	t.Run("Int", func(t *testing.T) {
		n, ok := s.Int("Reference Image Parameter", "ValidBitCounts")
		require.True(t, ok)
		assert.Equal(t, 12, n)

		_, ok = s.Int("Reference Image Parameter", "HeightConvertValue")
		assert.False(t, ok, "non-integer value should not parse as int")
	})

	t.Run("MissingSection", func(t *testing.T) {
		_, ok := s.Lookup("No Such Section", "Key")
		assert.False(t, ok)
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, ok := s.Lookup("Version Info", "NoSuchKey")
		assert.False(t, ok)
	})
}

func TestParseSettingsBigEndianBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("[Version Info]\r\nFileVersion=\"1.0\"\r\n"))
	require.NoError(t, err)

	s, err := ParseSettings(bytes.NewReader(data))
	require.NoError(t, err)
	v, ok := s.Lookup("Version Info", "FileVersion")
	require.True(t, ok)
	assert.Equal(t, "1.0", v)
}

func TestParseSettingsNoSections(t *testing.T) {
	_, err := ParseSettings(bytes.NewReader(utf16Bytes(t, "just some text\r\n")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestParseSettingsSkipsJunkLines(t *testing.T) {
	text := "orphan=before any section\r\n" +
		"[Section]\r\n" +
		"; a comment\r\n" +
		"no equals sign here\r\n" +
		"Key=Value\r\n"
	s, err := ParseSettings(bytes.NewReader(utf16Bytes(t, text)))
	require.NoError(t, err)

	v, ok := s.Lookup("Section", "Key")
	require.True(t, ok)
	assert.Equal(t, "Value", v)
	_, ok = s.Lookup("Section", "orphan")
	assert.False(t, ok)
}

func TestDepthConvert(t *testing.T) {
	t.Run("ViaAxisOrder", func(t *testing.T) {
		text := "[Axis Parameter Common]\r\n" +
			"AxisOrder=\"XYZ\"\r\n" +
			"[Axis 2 Parameters Common]\r\n" +
			"Interval=1.2\r\n" +
			"UnitName=\"um\"\r\n"
		s, err := ParseSettings(bytes.NewReader(utf16Bytes(t, text)))
		require.NoError(t, err)

		v, ok := s.depthConvert()
		require.True(t, ok)
		assert.Equal(t, "1.2 um", v)
	})

	t.Run("NoZAxis", func(t *testing.T) {
		text := "[Axis Parameter Common]\r\n" +
			"AxisOrder=\"XY\"\r\n"
		s, err := ParseSettings(bytes.NewReader(utf16Bytes(t, text)))
		require.NoError(t, err)

		_, ok := s.depthConvert()
		assert.False(t, ok)
	})

	t.Run("IntervalWithoutUnit", func(t *testing.T) {
		text := "[Axis Parameter Common]\r\n" +
			"AxisOrder=\"Z\"\r\n" +
			"[Axis 0 Parameters Common]\r\n" +
			"Interval=0.5\r\n"
		s, err := ParseSettings(bytes.NewReader(utf16Bytes(t, text)))
		require.NoError(t, err)

		v, ok := s.depthConvert()
		require.True(t, ok)
		assert.Equal(t, "0.5", v)
	})
}

func TestUnquote(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`"quoted"`, "quoted"},
		{`'quoted'`, "quoted"},
		{`plain`, "plain"},
		{`"`, `"`},
		{`"mismatched'`, `"mismatched'`},
		{``, ``},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, unquote(tc.in), "unquote(%q)", tc.in)
	}
}
