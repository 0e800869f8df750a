package contsub

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// FitsMetadata holds the header cards of a FITS image, keyed by upper-case
// keyword. Cards keeps the original order for copying into new files.
type FitsMetadata struct {
	Headers map[string]string
	Cards   []fitsio.Card
}

// NewFitsMetadata creates an empty FitsMetadata.
func NewFitsMetadata() *FitsMetadata {
	return &FitsMetadata{Headers: make(map[string]string)}
}

func (m *FitsMetadata) GetString(key string) string {
	if v, ok := m.Headers[strings.ToUpper(key)]; ok {
		return v
	}
	return ""
}

func (m *FitsMetadata) GetDouble(key string) (float64, bool) {
	v, ok := m.Headers[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (m *FitsMetadata) ObjectName() string   { return m.GetString("OBJECT") }
func (m *FitsMetadata) Filter() string       { return m.GetString("FILTER") }
func (m *FitsMetadata) CameraName() string   { return m.GetString("INSTRUME") }
func (m *FitsMetadata) BayerPattern() string { return strings.ToUpper(m.GetString("BAYERPAT")) }

func (m *FitsMetadata) ExposureTime() (float64, bool) {
	if v, ok := m.GetDouble("EXPTIME"); ok {
		return v, true
	}
	return m.GetDouble("EXPOSURE")
}

// Line guesses the emission line from the FILTER card.
func (m *FitsMetadata) Line() (Line, bool) {
	f := strings.ToLower(m.Filter())
	switch {
	case f == "":
		return 0, false
	case strings.Contains(f, "oiii") || strings.Contains(f, "o3"):
		return LineOIII, true
	case strings.Contains(f, "sii") || strings.Contains(f, "s2"):
		return LineSII, true
	case strings.Contains(f, "ha") || strings.Contains(f, "alpha"):
		return LineHa, true
	}
	return 0, false
}

// FitsImage is the primary HDU of a FITS file as float32 planes. A 2-D image
// has one plane, a NAXIS3=3 cube has three in R, G, B order.
type FitsImage struct {
	Planes   []Mat
	Width    int
	Height   int
	Metadata *FitsMetadata
}

func (f *FitsImage) Close() {
	for _, p := range f.Planes {
		p.Close()
	}
}

// RGB returns the colour planes of the image: a 3-plane cube as is, an RGGB
// mosaic debayered. The returned planes are new Mats owned by the caller.
func (f *FitsImage) RGB() (*RGB, error) {
	switch {
	case len(f.Planes) == 3:
		return &RGB{R: f.Planes[0].Clone(), G: f.Planes[1].Clone(), B: f.Planes[2].Clone()}, nil
	case len(f.Planes) == 1 && f.Metadata.BayerPattern() == "RGGB":
		return DebayerToRGB(f.Planes[0])
	case len(f.Planes) == 1 && f.Metadata.BayerPattern() != "":
		return nil, fmt.Errorf("unsupported bayer pattern %q", f.Metadata.BayerPattern())
	}
	return nil, fmt.Errorf("image with %d plane(s) is not colour", len(f.Planes))
}

// ReadFits reads the primary image of a FITS file.
func ReadFits(path string) (*FitsImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	img, err := readFitsFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ReadFitsFromBytes reads the primary image of an in-memory FITS file.
func ReadFitsFromBytes(data []byte) (*FitsImage, error) {
	return readFitsFromReader(bytes.NewReader(data))
}

func readFitsFromReader(r io.Reader) (*FitsImage, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("parsing FITS: %w", err)
	}
	defer f.Close()

	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("primary HDU is not an image")
	}
	hdr := hdu.Header()

	axes := hdr.Axes()
	planes := 1
	switch {
	case len(axes) == 2:
	case len(axes) == 3 && (axes[2] == 1 || axes[2] == 3):
		planes = axes[2]
	default:
		return nil, fmt.Errorf("unsupported FITS shape NAXIS=%d %v", len(axes), axes)
	}
	width, height := axes[0], axes[1]
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS1=%d, NAXIS2=%d", width, height)
	}

	meta := metadataFromHeader(hdr)
	data, err := readPixels(hdu, hdr.Bitpix(), width*height*planes)
	if err != nil {
		return nil, err
	}
	bzero, bscale := 0.0, 1.0
	if v, ok := meta.GetDouble("BZERO"); ok {
		bzero = v
	}
	if v, ok := meta.GetDouble("BSCALE"); ok {
		bscale = v
	}

	img := &FitsImage{Width: width, Height: height, Metadata: meta}
	n := width * height
	for p := 0; p < planes; p++ {
		m, err := NewMatFromData(data[p*n:(p+1)*n], width, height)
		if err != nil {
			img.Close()
			return nil, err
		}
		if bzero != 0 || bscale != 1 {
			physical := NewMat()
			scaleOffset(m, bscale, bzero, &physical)
			m.Close()
			m = physical
		}
		img.Planes = append(img.Planes, m)
	}
	return img, nil
}

func readPixels(hdu fitsio.Image, bitpix, n int) ([]float32, error) {
	out := make([]float32, n)
	switch bitpix {
	case 8:
		raw := make([]uint8, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading 8-bit pixel data: %w", err)
		}
		for i := range out {
			out[i] = float32(raw[i])
		}
	case 16:
		raw := make([]int16, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading 16-bit pixel data: %w", err)
		}
		for i := range out {
			out[i] = float32(raw[i])
		}
	case 32:
		raw := make([]int32, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading 32-bit pixel data: %w", err)
		}
		for i := range out {
			out[i] = float32(raw[i])
		}
	case -32:
		if err := hdu.Read(&out); err != nil {
			return nil, fmt.Errorf("reading -32 float pixel data: %w", err)
		}
	case -64:
		raw := make([]float64, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading -64 float pixel data: %w", err)
		}
		for i := range out {
			out[i] = float32(raw[i])
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}
	if len(out) < n {
		return nil, fmt.Errorf("short pixel data: %d of %d samples", len(out), n)
	}
	return out[:n], nil
}

func metadataFromHeader(hdr *fitsio.Header) *FitsMetadata {
	meta := NewFitsMetadata()
	for _, key := range hdr.Keys() {
		card := hdr.Get(key)
		if card == nil {
			continue
		}
		meta.Cards = append(meta.Cards, *card)
		if card.Value == nil {
			continue
		}
		meta.Headers[strings.ToUpper(key)] = strings.TrimSpace(fmt.Sprint(card.Value))
	}
	return meta
}

// structural cards are written by fitsio itself or would be wrong for a
// float32 cube.
var structuralCards = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"NAXIS3": true, "EXTEND": true, "BZERO": true, "BSCALE": true, "END": true,
	"COMMENT": true, "HISTORY": true, "": true,
}

// WriteRGBFits writes rgb as a float32 cube with NAXIS3=3 in R, G, B plane
// order. Non-structural cards of meta are copied, then one HISTORY card per
// history line is appended.
func WriteRGBFits(path string, rgb *RGB, meta *FitsMetadata, history ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create FITS file: %w", err)
	}
	if err := EncodeRGBFits(f, rgb, meta, history...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeRGBFits is WriteRGBFits onto an arbitrary writer.
func EncodeRGBFits(w io.Writer, rgb *RGB, meta *FitsMetadata, history ...string) error {
	return encodeFits(w, []int{rgb.Width(), rgb.Height(), 3}, rgb.Planes(), meta, history)
}

// WritePlaneFits writes a single float32 plane.
func WritePlaneFits(path string, m Mat, meta *FitsMetadata, history ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create FITS file: %w", err)
	}
	n := m.Rows() * m.Cols()
	data := append([]float32(nil), m.DataFloat32()[:n]...)
	if err := encodeFits(f, []int{m.Cols(), m.Rows()}, data, meta, history); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeFits(w io.Writer, axes []int, data []float32, meta *FitsMetadata, history []string) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create FITS stream: %w", err)
	}
	defer f.Close()

	img := fitsio.NewImage(-32, axes)
	defer img.Close()

	var cards []fitsio.Card
	seen := make(map[string]bool)
	if meta != nil {
		for _, c := range meta.Cards {
			key := strings.ToUpper(c.Name)
			if structuralCards[key] || seen[key] {
				continue
			}
			seen[key] = true
			cards = append(cards, c)
		}
	}
	for _, h := range history {
		cards = append(cards, fitsio.Card{Name: "HISTORY", Comment: h})
	}
	if len(cards) > 0 {
		if err := img.Header().Append(cards...); err != nil {
			return fmt.Errorf("FITS header: %w", err)
		}
	}

	if err := img.Write(&data); err != nil {
		return fmt.Errorf("FITS pixel data: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("writing FITS: %w", err)
	}
	return nil
}
