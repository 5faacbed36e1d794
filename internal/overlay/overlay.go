// Package overlay draws pose and measurement annotations onto video frames.
package overlay

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/tracker"
)

// Colors used on the frame. gocv converts RGBA to the Mat's BGR order.
var (
	TextColor     = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	PointColor    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	SkeletonColor = color.RGBA{R: 245, G: 245, B: 245, A: 0}
	LandmarkColor = color.RGBA{R: 245, G: 66, B: 66, A: 0}
)

const (
	textScale     = 0.5
	textThickness = 1
	// PointRadius is the radius of a picked calibration point.
	PointRadius = 2
	// MinVisibility hides skeleton landmarks the detector is unsure about.
	MinVisibility = 0.5
)

// Options selects which layers Render draws.
type Options struct {
	Skeleton bool
	Status   string
}

// Render draws the skeleton (if enabled), the annotation and an optional
// status line onto img.
func Render(img *gocv.Mat, pose *detector.PoseLandmarks, a *tracker.Annotation, opts Options) {
	if img == nil || img.Empty() {
		return
	}
	if opts.Skeleton && pose != nil {
		DrawSkeleton(img, pose)
	}
	if a != nil {
		DrawAnnotation(img, *a)
	}
	if opts.Status != "" {
		DrawStatus(img, opts.Status)
	}
}

// DrawAnnotation writes the annotation text at its vertex pixel.
func DrawAnnotation(img *gocv.Mat, a tracker.Annotation) {
	if a.Text == "" {
		return
	}
	gocv.PutTextWithParams(img, a.Text, image.Pt(a.X, a.Y), gocv.FontHersheySimplex,
		textScale, TextColor, textThickness, gocv.LineAA, false)
}

// DrawPoints marks picked calibration points with filled dots.
func DrawPoints(img *gocv.Mat, points []calibration.Point) {
	for _, p := range points {
		gocv.Circle(img, image.Pt(int(math.Round(p.X)), int(math.Round(p.Y))), PointRadius, PointColor, -1)
	}
}

// DrawSkeleton draws the pose connections and landmark dots.
func DrawSkeleton(img *gocv.Mat, pose *detector.PoseLandmarks) {
	w, h := img.Cols(), img.Rows()

	for _, c := range detector.Connections {
		a, b := pose.At(c[0]), pose.At(c[1])
		if a.Visibility < MinVisibility || b.Visibility < MinVisibility {
			continue
		}
		ax, ay := a.Pixel(w, h)
		bx, by := b.Pixel(w, h)
		gocv.Line(img, image.Pt(ax, ay), image.Pt(bx, by), SkeletonColor, 2)
	}

	for _, p := range pose.Points {
		if p.Visibility < MinVisibility {
			continue
		}
		x, y := p.Pixel(w, h)
		gocv.Circle(img, image.Pt(x, y), 3, LandmarkColor, -1)
	}
}

// DrawStatus writes a short status line in the top-left corner.
func DrawStatus(img *gocv.Mat, text string) {
	gocv.PutTextWithParams(img, text, image.Pt(10, 20), gocv.FontHersheySimplex,
		textScale, TextColor, textThickness, gocv.LineAA, false)
}
