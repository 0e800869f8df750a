package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cs "contsub/pkg/contsub"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "mix" {
		return runMix(args[1:])
	}

	fs := flag.NewFlagSet("contsub", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "YAML config file; flags override its values")
		nbPath     = fs.String("nb", "", "narrowband image (FITS, PNG, TIFF...)")
		coPath     = fs.String("co", "", "continuum image; defaults to the line's channel of -rgb")
		rgbPath    = fs.String("rgb", "", "broadband colour image: FITS cube, RGGB mosaic or colour file")
		rPath      = fs.String("r", "", "red plane, instead of -rgb")
		gPath      = fs.String("g", "", "green plane, instead of -rgb")
		bPath      = fs.String("b", "", "blue plane, instead of -rgb")
		lineName   = fs.String("line", "", "emission line: ha, sii or oiii (default from FILTER card, else ha)")
		regionStr  = fs.String("region", "", "estimation region WxH+X+Y (default whole image)")
		scale      = fs.Float64("c", 0, "manual continuum scale in [0, 1]; skips estimation")
		method     = fs.String("method", "", "scale estimation method: fit or ratio")
		strength   = fs.Float64("q", 0, "blend strength")
		weightsStr = fs.String("weights", "", "blend weights R,G,B (default from line)")
		blue       = fs.Float64("blue", 0, "blend weight for the blue channel")
		outPath    = fs.String("out", "", "blended RGB FITS output")
		csPath     = fs.String("cs", "", "continuum-subtracted FITS output")
		plotPath   = fs.String("plot", "", "search trace plot (.png or .jpg)")
		dumpConfig = fs.Bool("dump-config", false, "print the effective config and exit")
		debug      = fs.Bool("debug", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := initLogger(*debug)

	cfg := cs.NewConfig()
	if *configPath != "" {
		var err error
		if cfg, err = cs.LoadConfig(*configPath); err != nil {
			return err
		}
		log.WithField("config", *configPath).Debug("loaded config")
	}

	var flagErr error
	lineSet := false
	fs.Visit(func(f *flag.Flag) {
		if flagErr != nil {
			return
		}
		switch f.Name {
		case "nb":
			cfg.Inputs.Narrowband = *nbPath
		case "co":
			cfg.Inputs.Continuum = *coPath
		case "rgb":
			cfg.Inputs.RGB = *rgbPath
		case "r":
			cfg.Inputs.Red = *rPath
		case "g":
			cfg.Inputs.Green = *gPath
		case "b":
			cfg.Inputs.Blue = *bPath
		case "line":
			cfg.Line, flagErr = cs.ParseLine(*lineName)
			lineSet = true
		case "region":
			var r cs.Region
			r, flagErr = cs.ParseRegion(*regionStr)
			cfg.Region = &r
		case "c":
			v := *scale
			cfg.Scale = &v
		case "method":
			cfg.Method = *method
		case "q":
			cfg.Strength = *strength
		case "weights":
			var w cs.ChannelWeights
			w, flagErr = parseWeights(*weightsStr)
			cfg.SetWeights(w)
		case "out":
			cfg.Outputs.Blended = *outPath
		case "cs":
			cfg.Outputs.Subtracted = *csPath
		case "plot":
			cfg.Outputs.Plot = *plotPath
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if cfg.Inputs.Narrowband == "" {
		return fmt.Errorf("usage: contsub -nb <narrowband> (-co <continuum> | -rgb <colour> | -r -g -b) [flags]")
	}

	nb, nbMeta, err := loadPlane(cfg.Inputs.Narrowband)
	if err != nil {
		return err
	}
	defer nb.Close()
	if !lineSet && *configPath == "" {
		if line, ok := nbMeta.Line(); ok {
			cfg.Line = line
			log.WithField("line", line.String()).Info("emission line from FILTER card")
		}
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}
	if isSet(fs, "blue") {
		w := *cfg.Weights
		w.Blue = *blue
		cfg.SetWeights(w)
	}
	if *dumpConfig {
		fmt.Print(cfg.AsYaml())
		return nil
	}

	rgb, err := loadBroadband(cfg.Inputs)
	if err != nil {
		return err
	}
	if rgb != nil {
		defer rgb.Close()
	}

	co, err := continuumPlane(cfg, rgb)
	if err != nil {
		return err
	}
	defer co.Close()

	region := cfg.RegionOr(cs.FullRegion(nb))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scaleFactor, baseline, est, err := chooseScale(ctx, log, cfg, nb, co, rgb, region)
	if err != nil {
		return err
	}

	sub, err := cs.GenerateSubtracted(nb, co, scaleFactor, baseline)
	if err != nil {
		return err
	}
	defer sub.Close()

	history := fmt.Sprintf("contsub %s c=%.4f baseline=%g region=%s", cfg.Line, scaleFactor, baseline, region)
	if cfg.Outputs.Subtracted != "" {
		if err := cs.WritePlaneFits(cfg.Outputs.Subtracted, sub, nbMeta, history); err != nil {
			return err
		}
		log.WithField("path", cfg.Outputs.Subtracted).Info("wrote continuum-subtracted image")
	}

	if cfg.Outputs.Blended != "" {
		if rgb == nil {
			return fmt.Errorf("-out needs broadband colour input")
		}
		blended, err := cs.Composite(rgb.R, rgb.G, rgb.B, sub, cfg.Strength, *cfg.Weights)
		if err != nil {
			return err
		}
		defer blended.Close()
		w := cfg.Weights
		blendHistory := fmt.Sprintf("blend q=%g weights=%g,%g,%g", cfg.Strength, w.Red, w.Green, w.Blue)
		if err := cs.WriteRGBFits(cfg.Outputs.Blended, blended, nbMeta, history, blendHistory); err != nil {
			return err
		}
		log.WithField("path", cfg.Outputs.Blended).Info("wrote blended image")
	}

	if cfg.Outputs.Plot != "" {
		if est == nil {
			log.Warn("no search trace to plot, scale was not estimated by fit")
		} else if err := cs.RenderTrace(est, cfg.Outputs.Plot); err != nil {
			return err
		}
	}

	return nil
}

// chooseScale returns the continuum scale and the baseline the subtraction
// is anchored on. est is nil unless the fit method ran.
func chooseScale(ctx context.Context, log *logrus.Logger, cfg cs.Config, nb, co cs.Mat, rgb *cs.RGB, region cs.Region) (float64, float64, *cs.Estimate, error) {
	if cfg.Scale != nil || cfg.Method == cs.MethodRatio {
		nbSub, coSub, baseline, err := cs.RegionStats(nb, co, region)
		if err != nil {
			return 0, 0, nil, err
		}
		nbSub.Close()
		coSub.Close()

		if cfg.Scale != nil {
			log.WithFields(logrus.Fields{"c": *cfg.Scale, "baseline": baseline}).Info("manual continuum scale")
			return *cfg.Scale, baseline, nil, nil
		}
		if rgb == nil {
			return 0, 0, nil, fmt.Errorf("ratio method needs broadband colour input")
		}
		c, err := cs.EstimateScaleRatio(nb, rgb.R, rgb.G, rgb.B)
		if err != nil {
			return 0, 0, nil, err
		}
		log.WithFields(logrus.Fields{"c": c, "baseline": baseline}).Info("ratio continuum scale")
		return c, baseline, nil, nil
	}

	start := time.Now()
	est, err := cs.EstimateScale(ctx, nb, co, region,
		append(cfg.SearchOptions(),
			cs.WithLogger(log),
			cs.WithProgress(func(msg string, frac float64) {
				log.WithField("progress", fmt.Sprintf("%3.0f%%", 100*frac)).Debug(msg)
			}),
		)...)
	if err != nil {
		if errors.Is(err, cs.ErrCancelled) {
			log.Warn("estimation interrupted")
		}
		return 0, 0, nil, err
	}

	fields := logrus.Fields{
		"c":        fmt.Sprintf("%.4f", est.Scale),
		"coarse":   fmt.Sprintf("%.4f", est.Coarse0),
		"baseline": est.Baseline,
		"region":   est.Region.String(),
		"elapsed":  time.Since(start).Round(time.Millisecond).String(),
	}
	if est.Fitted {
		fields["r2"] = fmt.Sprintf("%.4f", est.Model.RSquared)
		log.WithFields(fields).Info("estimated continuum scale")
	} else {
		log.WithFields(fields).WithError(est.FitErr).Warn("estimated continuum scale from best sample")
	}
	return est.Scale, est.Baseline, est, nil
}

func runMix(args []string) error {
	fs := flag.NewFlagSet("contsub mix", flag.ContinueOnError)
	var (
		haPath   = fs.String("ha", "", "Ha image")
		oiiiPath = fs.String("oiii", "", "OIII image")
		mixStr   = fs.String("mix", "", "Ha share per channel R,G,B (default 1,0.5,0)")
		outPath  = fs.String("out", "", "RGB FITS output")
		debug    = fs.Bool("debug", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := initLogger(*debug)
	if *haPath == "" || *oiiiPath == "" || *outPath == "" {
		return fmt.Errorf("usage: contsub mix -ha <ha> -oiii <oiii> -out <rgb.fits> [-mix R,G,B]")
	}

	share := cs.DefaultMix
	if *mixStr != "" {
		var err error
		if share, err = parseWeights(*mixStr); err != nil {
			return err
		}
	}

	ha, haMeta, err := loadPlane(*haPath)
	if err != nil {
		return err
	}
	defer ha.Close()
	oiii, _, err := loadPlane(*oiiiPath)
	if err != nil {
		return err
	}
	defer oiii.Close()

	rgb, err := cs.MixNarrowband(ha, oiii, share)
	if err != nil {
		return err
	}
	defer rgb.Close()

	history := fmt.Sprintf("Ha/OIII mix R=%g G=%g B=%g", share.Red, share.Green, share.Blue)
	if err := cs.WriteRGBFits(*outPath, rgb, haMeta, history); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"path": *outPath, "mix": history}).Info("wrote bicolour image")
	return nil
}

func parseWeights(s string) (cs.ChannelWeights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return cs.ChannelWeights{}, fmt.Errorf("weights %q: want R,G,B", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return cs.ChannelWeights{}, fmt.Errorf("weights %q: %w", s, err)
		}
		v[i] = f
	}
	return cs.ChannelWeights{Red: v[0], Green: v[1], Blue: v[2]}, nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func isFits(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".fits") || strings.HasSuffix(lower, ".fit") || strings.HasSuffix(lower, ".fts")
}

// loadPlane loads a monochrome image. Colour files are reduced to luminance.
func loadPlane(path string) (cs.Mat, *cs.FitsMetadata, error) {
	if isFits(path) {
		img, err := cs.ReadFits(path)
		if err != nil {
			return cs.Mat{}, nil, fmt.Errorf("reading FITS: %w", err)
		}
		if len(img.Planes) == 1 {
			return img.Planes[0], img.Metadata, nil
		}
		rgb := &cs.RGB{R: img.Planes[0], G: img.Planes[1], B: img.Planes[2]}
		defer rgb.Close()
		return rgb.Luminance(), img.Metadata, nil
	}

	planes, err := loadNonFitsImage(path)
	if err != nil {
		return cs.Mat{}, nil, err
	}
	if len(planes) == 1 {
		return planes[0], cs.NewFitsMetadata(), nil
	}
	rgb := &cs.RGB{R: planes[0], G: planes[1], B: planes[2]}
	defer rgb.Close()
	return rgb.Luminance(), cs.NewFitsMetadata(), nil
}

// loadBroadband returns nil when no colour input is configured.
func loadBroadband(in cs.InputPaths) (*cs.RGB, error) {
	if in.RGB != "" {
		if isFits(in.RGB) {
			img, err := cs.ReadFits(in.RGB)
			if err != nil {
				return nil, fmt.Errorf("reading FITS: %w", err)
			}
			defer img.Close()
			return img.RGB()
		}
		planes, err := loadNonFitsImage(in.RGB)
		if err != nil {
			return nil, err
		}
		if len(planes) != 3 {
			for _, p := range planes {
				p.Close()
			}
			return nil, fmt.Errorf("%s is not a colour image", in.RGB)
		}
		return &cs.RGB{R: planes[0], G: planes[1], B: planes[2]}, nil
	}

	if in.Red == "" && in.Green == "" && in.Blue == "" {
		return nil, nil
	}
	if in.Red == "" || in.Green == "" || in.Blue == "" {
		return nil, fmt.Errorf("-r, -g and -b must be given together")
	}
	var planes []cs.Mat
	for _, p := range []string{in.Red, in.Green, in.Blue} {
		m, _, err := loadPlane(p)
		if err != nil {
			for _, loaded := range planes {
				loaded.Close()
			}
			return nil, err
		}
		planes = append(planes, m)
	}
	return &cs.RGB{R: planes[0], G: planes[1], B: planes[2]}, nil
}

// continuumPlane returns a caller-owned continuum plane, either loaded from
// its own file or cloned from the line's broadband channel.
func continuumPlane(cfg cs.Config, rgb *cs.RGB) (cs.Mat, error) {
	if cfg.Inputs.Continuum != "" {
		co, _, err := loadPlane(cfg.Inputs.Continuum)
		return co, err
	}
	if rgb == nil {
		return cs.Mat{}, fmt.Errorf("no continuum: give -co, -rgb or -r/-g/-b")
	}
	switch cfg.Line.ContinuumChannel() {
	case cs.ChannelGreen:
		return rgb.G.Clone(), nil
	case cs.ChannelBlue:
		return rgb.B.Clone(), nil
	default:
		return rgb.R.Clone(), nil
	}
}
