//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"fmt"
	"syscall/js"

	cs "contsub/pkg/contsub"
)

// session keeps the inputs of the last estimateScale call for blendFITS and
// renderTrace.
type session struct {
	nb       cs.Mat
	co       cs.Mat
	rgb      *cs.RGB
	meta     *cs.FitsMetadata
	line     cs.Line
	estimate *cs.Estimate
}

func (s *session) Close() {
	s.nb.Close()
	s.co.Close()
	if s.rgb != nil {
		s.rgb.Close()
	}
}

var last *session

func main() {
	js.Global().Set("estimateScale", js.FuncOf(estimateScale))
	js.Global().Set("renderTrace", js.FuncOf(renderTrace))
	js.Global().Set("blendFITS", js.FuncOf(blendFITS))
	select {} // block forever
}

// estimateScale(narrowbandBytes, broadbandBytes, options) where options may
// hold line, region {x, y, w, h} and an onProgress(message, fraction) callback.
func estimateScale(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("usage: estimateScale(narrowbandBytes, broadbandBytes, options)")
	}
	var opts js.Value
	if len(args) >= 3 && args[2].Type() == js.TypeObject {
		opts = args[2]
	}

	nbFits, err := cs.ReadFitsFromBytes(copyBytes(args[0]))
	if err != nil {
		return errorResult("narrowband FITS parse error: " + err.Error())
	}
	if len(nbFits.Planes) != 1 {
		nbFits.Close()
		return errorResult("narrowband image must have a single plane")
	}
	bbFits, err := cs.ReadFitsFromBytes(copyBytes(args[1]))
	if err != nil {
		nbFits.Close()
		return errorResult("broadband FITS parse error: " + err.Error())
	}
	defer bbFits.Close()

	s := &session{nb: nbFits.Planes[0], meta: nbFits.Metadata, line: cs.LineHa}
	if line, ok := nbFits.Metadata.Line(); ok {
		s.line = line
	}
	if opts.Truthy() && opts.Get("line").Type() == js.TypeString {
		if s.line, err = cs.ParseLine(opts.Get("line").String()); err != nil {
			s.Close()
			return errorResult(err.Error())
		}
	}

	if len(bbFits.Planes) == 1 && bbFits.Metadata.BayerPattern() == "" {
		s.co = bbFits.Planes[0].Clone()
	} else {
		if s.rgb, err = bbFits.RGB(); err != nil {
			s.Close()
			return errorResult("broadband: " + err.Error())
		}
		switch s.line.ContinuumChannel() {
		case cs.ChannelGreen:
			s.co = s.rgb.G.Clone()
		default:
			s.co = s.rgb.R.Clone()
		}
	}

	region := cs.FullRegion(s.nb)
	estOpts := []cs.Option{}
	if opts.Truthy() {
		if r := opts.Get("region"); r.Type() == js.TypeObject {
			region = cs.Region{X: r.Get("x").Int(), Y: r.Get("y").Int(), W: r.Get("w").Int(), H: r.Get("h").Int()}
		}
		if cb := opts.Get("onProgress"); cb.Type() == js.TypeFunction {
			estOpts = append(estOpts, cs.WithProgress(func(msg string, frac float64) {
				cb.Invoke(msg, frac)
			}))
		}
	}

	est, err := cs.EstimateScale(context.Background(), s.nb, s.co, region, estOpts...)
	if err != nil {
		s.Close()
		return errorResult("estimation error: " + err.Error())
	}
	s.estimate = est

	if last != nil {
		last.Close()
	}
	last = s

	trace := make([]interface{}, 0, len(est.Trace.Coarse)+len(est.Trace.Fine))
	for _, smp := range est.Trace.All() {
		trace = append(trace, map[string]interface{}{"c": smp.C, "aad": smp.AAD})
	}
	jsResult := map[string]interface{}{
		"width":    s.nb.Cols(),
		"height":   s.nb.Rows(),
		"line":     s.line.String(),
		"scale":    est.Scale,
		"coarse":   est.Coarse0,
		"baseline": est.Baseline,
		"fitted":   est.Fitted,
		"trace":    trace,
		"colour":   s.rgb != nil,
	}
	if est.Fitted {
		jsResult["r2"] = est.Model.RSquared
	} else if est.FitErr != nil {
		jsResult["fitError"] = est.FitErr.Error()
		jsResult["lastModel"] = map[string]interface{}{
			"a": est.Model.A, "s0": est.Model.S0, "eps": est.Model.Eps, "b": est.Model.B,
		}
	}
	return js.ValueOf(jsResult)
}

func renderTrace(this js.Value, args []js.Value) interface{} {
	if last == nil || last.estimate == nil {
		return js.Null()
	}

	jpegBytes, err := cs.RenderTraceBytes(last.estimate)
	if err != nil {
		return js.Null()
	}
	return toUint8Array(jpegBytes)
}

// blendFITS(q, weights) composites the last estimate into the broadband
// image and returns the FITS cube bytes. scale overrides the estimate when
// given in weights.scale.
func blendFITS(this js.Value, args []js.Value) interface{} {
	if last == nil || last.rgb == nil {
		return errorResult("blendFITS needs a colour broadband image from estimateScale")
	}
	q := 2.0
	if len(args) >= 1 && args[0].Type() == js.TypeNumber {
		q = args[0].Float()
	}
	weights := last.line.DefaultWeights()
	scale := last.estimate.Scale
	if len(args) >= 2 && args[1].Type() == js.TypeObject {
		w := args[1]
		for key, dst := range map[string]*float64{"red": &weights.Red, "green": &weights.Green, "blue": &weights.Blue, "scale": &scale} {
			if v := w.Get(key); v.Type() == js.TypeNumber {
				*dst = v.Float()
			}
		}
	}

	sub, err := cs.GenerateSubtracted(last.nb, last.co, scale, last.estimate.Baseline)
	if err != nil {
		return errorResult(err.Error())
	}
	defer sub.Close()
	blended, err := cs.Composite(last.rgb.R, last.rgb.G, last.rgb.B, sub, q, weights)
	if err != nil {
		return errorResult(err.Error())
	}
	defer blended.Close()

	var buf bytes.Buffer
	history := fmt.Sprintf("contsub %s c=%.4f q=%g weights=%g,%g,%g", last.line, scale, q, weights.Red, weights.Green, weights.Blue)
	if err := cs.EncodeRGBFits(&buf, blended, last.meta, history); err != nil {
		return errorResult(err.Error())
	}
	return toUint8Array(buf.Bytes())
}

func copyBytes(v js.Value) []byte {
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

func toUint8Array(b []byte) js.Value {
	uint8Array := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(uint8Array, b)
	return uint8Array
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
