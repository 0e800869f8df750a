package contsub

import "fmt"

// RGB is a three-plane colour image. Planes are owned by the RGB.
type RGB struct {
	R Mat
	G Mat
	B Mat
}

func (img *RGB) Width() int  { return img.R.Cols() }
func (img *RGB) Height() int { return img.R.Rows() }

// Planes returns the samples in channel-first (3, H, W) order.
func (img *RGB) Planes() []float32 {
	n := img.Width() * img.Height()
	out := make([]float32, 0, 3*n)
	for _, p := range []Mat{img.R, img.G, img.B} {
		out = append(out, p.DataFloat32()[:n]...)
	}
	return out
}

// Luminance returns the Rec. 601 weighted sum of the three planes.
func (img *RGB) Luminance() Mat {
	rg := NewMat()
	defer rg.Close()
	addWeighted(img.R, 0.299, img.G, 0.587, 0, &rg)
	out := NewMat()
	addWeighted(rg, 1, img.B, 0.114, 0, &out)
	return out
}

func (img *RGB) Close() {
	img.R.Close()
	img.G.Close()
	img.B.Close()
}

// Composite adds the median-recentred subtracted signal into each channel:
//
//	ch' = ch + (cs - median(cs)) * q * w_ch
//
// Recentring on the median injects only the deviation from the background,
// so the overall level of each channel is kept. The inputs are not modified.
func Composite(r, g, b, cs Mat, q float64, w ChannelWeights) (*RGB, error) {
	if err := checkShapes([]string{"red", "green", "blue", "subtracted"}, r, g, b, cs); err != nil {
		return nil, err
	}

	csMedian := Median(cs)
	blend := func(ch Mat, weight float64) Mat {
		k := q * weight
		out := NewMat()
		addWeighted(ch, 1, cs, k, -csMedian*k, &out)
		return out
	}

	return &RGB{
		R: blend(r, w.Red),
		G: blend(g, w.Green),
		B: blend(b, w.Blue),
	}, nil
}

// DefaultMix is the Ha share per channel used by MixNarrowband: red all Ha,
// green half and half, blue all OIII.
var DefaultMix = ChannelWeights{Red: 1, Green: 0.5, Blue: 0}

// MixNarrowband builds a bicolour image from Ha and OIII planes. Each weight
// is the Ha share of that channel; the rest of the channel is OIII.
func MixNarrowband(ha, oiii Mat, haShare ChannelWeights) (*RGB, error) {
	if err := checkShapes([]string{"ha", "oiii"}, ha, oiii); err != nil {
		return nil, err
	}
	for _, s := range []float64{haShare.Red, haShare.Green, haShare.Blue} {
		if s < 0 || s > 1 {
			return nil, fmt.Errorf("ha share %f outside [0, 1]", s)
		}
	}

	mix := func(share float64) Mat {
		out := NewMat()
		addWeighted(ha, share, oiii, 1-share, 0, &out)
		return out
	}

	return &RGB{
		R: mix(haShare.Red),
		G: mix(haShare.Green),
		B: mix(haShare.Blue),
	}, nil
}
