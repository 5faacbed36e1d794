package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/jointtrack/internal/app"
	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/capture"
	"github.com/ayusman/jointtrack/internal/config"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/publish"
	"github.com/ayusman/jointtrack/internal/server"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/store"
	"github.com/ayusman/jointtrack/internal/tracker"
	"github.com/ayusman/jointtrack/internal/tray"
)

type overrides []string

func (o *overrides) String() string     { return fmt.Sprint(*o) }
func (o *overrides) Set(v string) error { *o = append(*o, v); return nil }

func main() {
	var sets overrides
	configPath := flag.String("config", "", "path to a KEY=VALUE config file")
	flag.Var(&sets, "set", "override a config value, KEY=VALUE (repeatable)")
	points := flag.String("points", "", "reference points x1,y1,x2,y2 in frame pixels")
	percent := flag.Float64("percent", 0, "reference length as a percentage of the frame diagonal")
	skip := flag.Bool("skip-calibration", false, "record angles only")
	record := flag.Bool("record", false, "start recording as soon as the session is ready")
	exportOnExit := flag.Bool("export", false, "export the stopped session on exit")
	flag.Parse()

	fmt.Println("JointTrack - Joint Motion Recorder")

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

	// Initialize the store
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	source, err := capture.ParseSource(cfg.CameraSource)
	if err != nil {
		log.Fatalf("Invalid camera source: %v", err)
	}
	camera := capture.NewCamera(source)
	if err := camera.Open(); err != nil {
		log.Fatalf("Failed to open %s: %v", source, err)
	}

	var (
		clock    tracker.Clock = tracker.SystemClock{}
		interval time.Duration
	)
	if source.IsFile() {
		clock = tracker.FrameClock(camera.FPS())
		interval = time.Second / time.Duration(camera.FPS())
	}

	var pub publish.Publisher = publish.Discard{}
	if cfg.MQTTBroker != "" {
		mp, err := publish.NewMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			log.Printf("MQTT unavailable, samples will not be published: %v", err)
		} else {
			pub = mp
			log.Printf("Publishing samples to %s on %s", cfg.MQTTTopic, cfg.MQTTBroker)
		}
	}

	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(cfg.DetectorConfig()); err == nil {
		det = mp
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		det = detector.NewMockDetector()
	}

	hub := server.NewHub()
	var menu *tray.Tray
	if cfg.Tray {
		menu = tray.New()
	}

	var a *app.App
	a, err = app.New(app.Config{
		Store:            st,
		Camera:           camera,
		Detector:         det,
		Publisher:        pub,
		Clock:            clock,
		Joint:            cfg.Joint,
		SamplesPerSecond: cfg.SamplesPerSecond,
		OutputDir:        cfg.OutputDir,
		FileName:         cfg.FileName,
		FrameInterval:    interval,
		Skeleton:         cfg.Skeleton,
		PreviewChange:    app.DefaultPreviewChange,
		OnResult: func(res tracker.Result) {
			hub.Broadcast(res)
			if menu != nil {
				menu.SetLast(&res)
				menu.SetRecording(a.Status().State == session.StateRecording)
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := prepare(a, cfg, *points, *percent, *skip); err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	if *record {
		if _, err := a.StartRecording(); err != nil {
			log.Printf("Cannot start recording yet: %v", err)
		}
	}

	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}

	// Configure and start server
	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.New(server.Config{
			StaticDir:  webDir,
			Store:      st,
			Controller: a,
			Frames:     a,
			Hub:        hub,
		}),
	}
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if menu != nil {
		menu.OnRecord(func() (bool, error) {
			toggle := a.StartRecording
			if a.Status().State == session.StateRecording {
				toggle = a.StopRecording
			}
			st, err := toggle()
			return st.State == session.StateRecording, err
		})
		menu.OnExport(func() (string, error) { return a.Export("") })
		menu.OnNewSession(func() error {
			_, err := a.NewSession()
			return err
		})
		menu.SetRecording(a.Status().State == session.StateRecording)
		menu.OnPreview(func() { openBrowser("http://" + cfg.HTTPAddr) })
		menu.OnQuit(stop)
		go func() {
			<-a.Done()
			menu.SetRecording(false)
		}()
		go func() {
			<-ctx.Done()
			menu.Quit()
		}()
		menu.Run()
	} else {
		select {
		case <-ctx.Done():
		case <-a.Done():
			log.Println("Capture ended")
		}
	}

	a.Stop()

	if *exportOnExit {
		if path, err := a.Export(""); err != nil {
			log.Printf("Export failed: %v", err)
		} else {
			fmt.Printf("Saved %s\n", path)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// prepare applies the calibration choice from the command line. With none
// given the session waits for points picked over the HTTP API.
func prepare(a *app.App, cfg *config.Config, points string, percent float64, skip bool) error {
	switch {
	case skip:
		_, err := a.SkipCalibration()
		return err
	case !cfg.Calibrate():
		if points != "" || percent > 0 {
			return fmt.Errorf("DISTANCE must be set to calibrate")
		}
		log.Println("Waiting for calibration via /api/calibration")
		return nil
	case points != "":
		p1, p2, err := calibration.ParsePoints(points)
		if err != nil {
			return err
		}
		_, err = a.CalibrateWithPoints(p1, p2, cfg.CalibrationDistance())
		return err
	case percent > 0:
		_, err := a.Calibrate(percent, cfg.CalibrationDistance())
		return err
	}
	log.Printf("Distance %v %s set, pick the reference points via /api/calibration/points", cfg.Distance, cfg.Unit)
	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.jointtrack/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".jointtrack", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
