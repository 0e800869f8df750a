package contsub

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	plotWidth  = 800
	plotHeight = 500
	plotMargin = 50
)

// RenderTrace draws the search samples, the fitted curve and the chosen
// coefficient, and writes a PNG or JPEG depending on the file extension.
func RenderTrace(est *Estimate, outputPath string) error {
	img, err := renderTraceImage(est)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".jpg", ".jpeg":
		b, err := encodeJPEG(img)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputPath, b, 0644); err != nil {
			return fmt.Errorf("write trace plot: %w", err)
		}
		return nil
	default:
		if err := gg.SavePNG(outputPath, img); err != nil {
			return fmt.Errorf("write trace plot: %w", err)
		}
		return nil
	}
}

// RenderTraceBytes returns the trace plot as JPEG bytes.
func RenderTraceBytes(est *Estimate) ([]byte, error) {
	img, err := renderTraceImage(est)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// plotAxes maps sample space onto the pixel area inside the margins.
type plotAxes struct {
	xMin, xMax, yMin, yMax float64
}

func (a plotAxes) px(c float64) float64 {
	return plotMargin + (c-a.xMin)/(a.xMax-a.xMin)*(plotWidth-2*plotMargin)
}

func (a plotAxes) py(v float64) float64 {
	return plotHeight - plotMargin - (v-a.yMin)/(a.yMax-a.yMin)*(plotHeight-2*plotMargin)
}

func traceAxes(samples []Sample) plotAxes {
	a := plotAxes{xMin: math.Inf(1), xMax: math.Inf(-1), yMin: math.Inf(1), yMax: math.Inf(-1)}
	for _, s := range samples {
		a.xMin, a.xMax = math.Min(a.xMin, s.C), math.Max(a.xMax, s.C)
		a.yMin, a.yMax = math.Min(a.yMin, s.AAD), math.Max(a.yMax, s.AAD)
	}
	if a.xMax <= a.xMin {
		a.xMin, a.xMax = a.xMin-1, a.xMax+1
	}
	if a.yMax <= a.yMin {
		a.yMin, a.yMax = a.yMin-1, a.yMax+1
	}
	return a
}

func renderTraceImage(est *Estimate) (image.Image, error) {
	if est == nil || len(est.Trace.All()) == 0 {
		return nil, fmt.Errorf("no trace data")
	}
	axes := traceAxes(est.Trace.All())

	dc := gg.NewContext(plotWidth, plotHeight)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	// Frame
	dc.SetRGBA(1, 1, 1, 0.7)
	dc.SetLineWidth(1)
	dc.DrawRectangle(plotMargin, plotMargin, plotWidth-2*plotMargin, plotHeight-2*plotMargin)
	dc.Stroke()

	// Chosen coefficient
	if est.Scale >= axes.xMin && est.Scale <= axes.xMax {
		dc.SetRGB(0.9, 0.2, 0.2)
		dc.DrawLine(axes.px(est.Scale), plotMargin, axes.px(est.Scale), plotHeight-plotMargin)
		dc.Stroke()
	}

	// Fitted curve over the fine window, dashed when the fit was rejected
	if len(est.Trace.Fine) > 1 && (est.Fitted || est.Model != FitModel{}) {
		lo, hi := est.Trace.Fine[0].C, est.Trace.Fine[len(est.Trace.Fine)-1].C
		const steps = 200
		dc.SetRGB(1, 0.6, 0.1)
		dc.SetLineWidth(2)
		if !est.Fitted {
			dc.SetRGB(0.7, 0.5, 0.3)
			dc.SetDash(6, 4)
		}
		for i := 0; i <= steps; i++ {
			c := lo + (hi-lo)*float64(i)/steps
			y := math.Max(axes.yMin, math.Min(axes.yMax, est.Model.Eval(c)))
			if i == 0 {
				dc.MoveTo(axes.px(c), axes.py(y))
			} else {
				dc.LineTo(axes.px(c), axes.py(y))
			}
		}
		dc.Stroke()
		dc.SetDash()
	}

	dc.SetRGB(0.6, 0.6, 0.6)
	for _, s := range est.Trace.Coarse {
		dc.DrawCircle(axes.px(s.C), axes.py(s.AAD), 4)
		dc.Fill()
	}
	dc.SetRGB(0.3, 0.6, 1)
	for _, s := range est.Trace.Fine {
		dc.DrawCircle(axes.px(s.C), axes.py(s.AAD), 2.5)
		dc.Fill()
	}

	// Labels
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", axes.xMin), plotMargin, plotHeight-plotMargin+16, 0.5, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", axes.xMax), plotWidth-plotMargin, plotHeight-plotMargin+16, 0.5, 0)
	dc.DrawStringAnchored("c", plotWidth/2, plotHeight-plotMargin+16, 0.5, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%.4g", axes.yMax), plotMargin-4, plotMargin, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.4g", axes.yMin), plotMargin-4, plotHeight-plotMargin, 1, 0.5)

	title := fmt.Sprintf("c = %.4f  coarse min %.3f  region %s", est.Scale, est.Coarse0, est.Region)
	if est.Fitted {
		title += fmt.Sprintf("  R2 %.3f", est.Model.RSquared)
	} else {
		title += "  (fit failed, best sample)"
	}
	dc.DrawString(title, plotMargin, plotMargin-16)

	return dc.Image(), nil
}
