// Command analyze records joint motion from a video file and exports it as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/cheggaaa/pb/v3"
	"gocv.io/x/gocv"

	"github.com/ayusman/jointtrack/internal/app"
	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/capture"
	"github.com/ayusman/jointtrack/internal/config"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/store"
	"github.com/ayusman/jointtrack/internal/tracker"
)

const barTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}} {{rtime . "%s remain" "%s total" "???"}}`

// progressCamera advances a progress bar for every frame read.
type progressCamera struct {
	capture.Camera
	bar *pb.ProgressBar
}

func (c *progressCamera) ReadFrame() (*gocv.Mat, error) {
	frame, err := c.Camera.ReadFrame()
	if err == nil {
		c.bar.Increment()
	}
	return frame, err
}

type overrides []string

func (o *overrides) String() string     { return fmt.Sprint(*o) }
func (o *overrides) Set(v string) error { *o = append(*o, v); return nil }

func main() {
	var sets overrides
	configPath := flag.String("config", "", "path to a KEY=VALUE config file")
	flag.Var(&sets, "set", "override a config value, KEY=VALUE (repeatable)")
	points := flag.String("points", "", "reference points x1,y1,x2,y2 in frame pixels")
	percent := flag.Float64("percent", 0, "reference length as a percentage of the frame diagonal")
	name := flag.String("name", "", "export file name (default FILE_NAME)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: analyze [flags] VIDEO\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	for _, kv := range sets {
		if err := cfg.Override(kv); err != nil {
			log.Fatalf("Invalid override: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	source := capture.Source{Path: flag.Arg(0)}
	camera := capture.NewCamera(source)
	if err := camera.Open(); err != nil {
		log.Fatalf("Failed to open %s: %v", source, err)
	}
	w, h := camera.Size()
	log.Printf("%s: %dx%d at %d fps, %d frames", source, w, h, camera.FPS(), camera.FrameCount())

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	det, err := detector.NewMediaPipeDetector(cfg.DetectorConfig())
	if err != nil {
		log.Fatalf("Pose detection unavailable: %v", err)
	}

	bar := pb.ProgressBarTemplate(barTemplate).Start(camera.FrameCount())
	bar.Set("prefix", cfg.Joint.String())

	a, err := app.New(app.Config{
		Store:            st,
		Camera:           &progressCamera{Camera: camera, bar: bar},
		Detector:         det,
		Clock:            tracker.FrameClock(camera.FPS()),
		Joint:            cfg.Joint,
		SamplesPerSecond: cfg.SamplesPerSecond,
		OutputDir:        cfg.OutputDir,
		FileName:         cfg.FileName,
		Skeleton:         cfg.Skeleton,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := calibrate(a, cfg, *points, *percent); err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	if _, err := a.StartRecording(); err != nil {
		log.Fatalf("Failed to start recording: %v", err)
	}
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	select {
	case <-a.Done():
	case <-ctx.Done():
		log.Println("Interrupted, exporting what was recorded")
	}
	a.Stop()
	bar.Finish()

	status := a.Status()
	path, err := a.Export(*name)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	fmt.Printf("Saved %d samples to %s\n", status.Samples, path)
}

func calibrate(a *app.App, cfg *config.Config, points string, percent float64) error {
	if !cfg.Calibrate() {
		if points != "" || percent > 0 {
			return fmt.Errorf("DISTANCE must be set to calibrate")
		}
		_, err := a.SkipCalibration()
		return err
	}

	if points != "" {
		p1, p2, err := calibration.ParsePoints(points)
		if err != nil {
			return err
		}
		_, err = a.CalibrateWithPoints(p1, p2, cfg.CalibrationDistance())
		return err
	}
	if percent <= 0 {
		return fmt.Errorf("DISTANCE needs -points or -percent")
	}
	_, err := a.Calibrate(percent, cfg.CalibrationDistance())
	return err
}
