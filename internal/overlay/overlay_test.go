package overlay

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/tracker"
)

func blankFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
}

func nonZero(t *testing.T, img gocv.Mat) int {
	t.Helper()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gocv.CountNonZero(gray)
}

func TestDrawAnnotation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping gocv test in short mode")
	}

	img := blankFrame()
	defer img.Close()

	DrawAnnotation(&img, tracker.Annotation{Text: "90.00", X: 320, Y: 240})
	if nonZero(t, img) == 0 {
		t.Error("expected text pixels on the frame")
	}

	// Red text leaves the blue and green channels empty.
	channels := gocv.Split(img)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if gocv.CountNonZero(channels[0]) != 0 || gocv.CountNonZero(channels[1]) != 0 {
		t.Error("expected red-only text")
	}
	if gocv.CountNonZero(channels[2]) == 0 {
		t.Error("expected pixels in the red channel")
	}
}

func TestDrawAnnotation_EmptyTextDrawsNothing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping gocv test in short mode")
	}

	img := blankFrame()
	defer img.Close()

	DrawAnnotation(&img, tracker.Annotation{X: 320, Y: 240})
	if n := nonZero(t, img); n != 0 {
		t.Errorf("expected blank frame, got %d non-zero pixels", n)
	}
}

func TestDrawPoints(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping gocv test in short mode")
	}

	img := blankFrame()
	defer img.Close()

	DrawPoints(&img, []calibration.Point{{X: 100, Y: 100}, {X: 140, Y: 100}})

	for _, p := range []calibration.Point{{X: 100, Y: 100}, {X: 140, Y: 100}} {
		v := img.GetVecbAt(int(p.Y), int(p.X))
		// BGR order: green dot.
		if v[0] != 0 || v[1] != 255 || v[2] != 0 {
			t.Errorf("pixel at %v = %v, want green", p, v)
		}
	}
	if v := img.GetVecbAt(300, 300); v[1] != 0 {
		t.Error("expected untouched pixel away from the points")
	}
}

func TestDrawSkeleton(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping gocv test in short mode")
	}

	img := blankFrame()
	defer img.Close()

	DrawSkeleton(&img, detector.StandingPose())
	if nonZero(t, img) == 0 {
		t.Error("expected skeleton pixels on the frame")
	}

	hidden := detector.StandingPose()
	for i := range hidden.Points {
		hidden.Points[i].Visibility = 0.1
	}
	empty := blankFrame()
	defer empty.Close()
	DrawSkeleton(&empty, hidden)
	if n := nonZero(t, empty); n != 0 {
		t.Errorf("low-visibility landmarks should not be drawn, got %d pixels", n)
	}
}

func TestRender(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping gocv test in short mode")
	}

	img := blankFrame()
	defer img.Close()

	a := &tracker.Annotation{Text: "45.00", X: 200, Y: 200}
	Render(&img, detector.StandingPose(), a, Options{Skeleton: true, Status: "REC"})
	if nonZero(t, img) == 0 {
		t.Error("expected rendered pixels")
	}

	// Nil and empty inputs are ignored.
	Render(nil, nil, nil, Options{})
	empty := gocv.NewMat()
	defer empty.Close()
	Render(&empty, detector.StandingPose(), a, Options{Skeleton: true})
}
