package colourmag

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// HeaderCard is one keyword record of a FITS header, in file order.
type HeaderCard struct {
	Key     string
	Raw     string
	Comment string
}

// Value converts the raw card value to the Go type it encodes.
func (c HeaderCard) Value() interface{} {
	switch {
	case c.Raw == "T":
		return true
	case c.Raw == "F":
		return false
	case strings.HasPrefix(c.Raw, "'"):
		return parseFitsValue(c.Raw)
	}
	if i, err := strconv.Atoi(c.Raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(strings.Replace(c.Raw, "D", "E", 1), 64); err == nil {
		return f
	}
	return c.Raw
}

// FitsMetadata holds parsed FITS header key-value pairs.
type FitsMetadata struct {
	Headers map[string]string
	Cards   []HeaderCard
}

// NewFitsMetadata creates an empty FitsMetadata.
func NewFitsMetadata() *FitsMetadata {
	return &FitsMetadata{Headers: make(map[string]string)}
}

func (m *FitsMetadata) GetString(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m.Headers[strings.ToUpper(key)]; ok {
		return v
	}
	return ""
}

func (m *FitsMetadata) GetDouble(key string) (float64, bool) {
	v := m.GetString(key)
	if v == "" {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (m *FitsMetadata) GetInt(key string) (int, bool) {
	v := m.GetString(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

func (m *FitsMetadata) GetDateTime(key string) (time.Time, bool) {
	v := m.GetString(key)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (m *FitsMetadata) ObjectName() string { return m.GetString("OBJECT") }
func (m *FitsMetadata) Filter() string     { return m.GetString("FILTER") }

// BayerPattern returns the BAYERPAT keyword, empty for mono sensors.
func (m *FitsMetadata) BayerPattern() string { return m.GetString("BAYERPAT") }

func (m *FitsMetadata) ExposureTime() (float64, bool) {
	if v, ok := m.GetDouble("EXPTIME"); ok {
		return v, true
	}
	return m.GetDouble("EXPOSURE")
}

// FitsImageData holds a decoded FITS primary image in physical units.
type FitsImageData struct {
	Pixels   []float32
	Width    int
	Height   int
	Bitpix   int
	Metadata *FitsMetadata
}

// Mat copies the pixels into a new Mat.
func (d *FitsImageData) Mat() Mat {
	return matFromFloat32(d.Pixels, d.Height, d.Width)
}

// ReadFits reads FITS headers and pixel data from a file.
func ReadFits(filePath string) (*FitsImageData, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readFitsFromReader(f, false)
}

// ReadFitsMetadataOnly reads only FITS headers without loading pixel data.
func ReadFitsMetadataOnly(filePath string) (*FitsImageData, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readFitsFromReader(f, true)
}

// ReadFitsFromBytes reads FITS headers and pixel data from a byte slice.
func ReadFitsFromBytes(data []byte) (*FitsImageData, error) {
	return readFitsFromReader(bytes.NewReader(data), false)
}

const (
	fitsBlockSize  = 2880
	fitsRecordSize = 80
)

// fitsSample decodes one big-endian stored value per BITPIX.
type fitsSample struct {
	size   int
	decode func(b []byte) float64
}

var fitsSamples = map[int]fitsSample{
	8:   {1, func(b []byte) float64 { return float64(b[0]) }},
	16:  {2, func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }},
	32:  {4, func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }},
	-32: {4, func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }},
	-64: {8, func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) }},
}

// primaryHeader carries the structural keywords of the primary HDU.
type primaryHeader struct {
	bitpix, naxis int
	axes          [3]int
	bzero, bscale float64
}

func (h *primaryHeader) set(key, raw string) {
	atoi := func() int {
		n, _ := strconv.Atoi(raw)
		return n
	}
	atof := func() float64 {
		f, _ := strconv.ParseFloat(raw, 64)
		return f
	}
	switch key {
	case "BITPIX":
		h.bitpix = atoi()
	case "NAXIS":
		h.naxis = atoi()
	case "NAXIS1":
		h.axes[0] = atoi()
	case "NAXIS2":
		h.axes[1] = atoi()
	case "NAXIS3":
		h.axes[2] = atoi()
	case "BZERO":
		h.bzero = atof()
	case "BSCALE":
		h.bscale = atof()
	}
}

// readHeader consumes header blocks up to and including the one holding END.
func readHeader(r io.Reader, metadata *FitsMetadata) (*primaryHeader, error) {
	h := &primaryHeader{axes: [3]int{0, 0, 1}, bscale: 1}
	block := make([]byte, fitsBlockSize)
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, fmt.Errorf("reading FITS header block: %w", err)
		}
		for off := 0; off < fitsBlockSize; off += fitsRecordSize {
			record := string(block[off : off+fitsRecordSize])
			key := strings.ToUpper(strings.TrimSpace(record[:8]))
			if key == "END" {
				return h, nil
			}
			if key == "" || record[8:10] != "= " {
				continue
			}
			raw, comment := splitFitsValue(record[10:])
			if v := parseFitsValue(raw); v != "" {
				metadata.Headers[key] = v
			}
			metadata.Cards = append(metadata.Cards, HeaderCard{Key: key, Raw: raw, Comment: comment})
			h.set(key, raw)
		}
	}
}

func readFitsFromReader(r io.Reader, skipPixelData bool) (*FitsImageData, error) {
	metadata := NewFitsMetadata()
	h, err := readHeader(r, metadata)
	if err != nil {
		return nil, err
	}
	width, height := h.axes[0], h.axes[1]
	if h.naxis < 2 || width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS=%d, NAXIS1=%d, NAXIS2=%d", h.naxis, width, height)
	}
	if h.naxis > 2 && h.axes[2] > 1 {
		return nil, fmt.Errorf("invalid FITS: %d image planes, expected a single plane", h.axes[2])
	}

	out := &FitsImageData{Width: width, Height: height, Bitpix: h.bitpix, Metadata: metadata}
	if skipPixelData {
		return out, nil
	}

	sample, ok := fitsSamples[h.bitpix]
	if !ok {
		return nil, fmt.Errorf("unsupported BITPIX: %d", h.bitpix)
	}
	raw := make([]byte, width*height*sample.size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("reading BITPIX %d pixel data: %w", h.bitpix, err)
	}
	out.Pixels = make([]float32, width*height)
	for i := range out.Pixels {
		v := sample.decode(raw[i*sample.size:])
		out.Pixels[i] = float32(v*h.bscale + h.bzero)
	}
	return out, nil
}

// splitFitsValue separates the value field from its trailing comment,
// respecting slashes inside quoted strings.
func splitFitsValue(field string) (value, comment string) {
	inQuote := false
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '\'':
			inQuote = !inQuote
		case '/':
			if !inQuote {
				return strings.TrimSpace(field[:i]), strings.TrimSpace(field[i+1:])
			}
		}
	}
	return strings.TrimSpace(field), ""
}

func parseFitsValue(rawValue string) string {
	if rawValue == "" {
		return ""
	}
	if rawValue == "T" {
		return "True"
	}
	if rawValue == "F" {
		return "False"
	}
	if strings.HasPrefix(rawValue, "'") {
		endQuote := strings.LastIndex(rawValue, "'")
		if endQuote > 0 {
			return strings.ReplaceAll(strings.TrimRight(rawValue[1:endQuote], " "), "''", "'")
		}
		return strings.TrimLeft(strings.TrimRight(rawValue, " "), "'")
	}
	return rawValue
}
