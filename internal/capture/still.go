package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// SceneChange reports whether a frame differs enough from the last changed
// frame to be worth running pose detection on. It compares blurred grayscale
// frames and counts pixels whose intensity moved by more than a fixed step.
// The reference frame only advances on a change, so slow drift accumulates
// until it crosses the threshold.
//
// It is not safe for concurrent use.
type SceneChange struct {
	// MinChangedPercent is the share of pixels (0-100) that must change.
	MinChangedPercent float64
	prev              gocv.Mat
	primed            bool
}

const (
	sceneBlurSize  = 21
	sceneDiffLevel = 25
)

// NewSceneChange creates a SceneChange with the given threshold in percent.
func NewSceneChange(minChangedPercent float64) *SceneChange {
	return &SceneChange{
		MinChangedPercent: minChangedPercent,
		prev:              gocv.NewMat(),
	}
}

// Changed compares frame with the reference frame and returns whether the
// scene changed along with the changed share in percent. The first frame
// always counts as changed.
func (s *SceneChange) Changed(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(sceneBlurSize, sceneBlurSize), 0, 0, gocv.BorderDefault)

	if !s.primed || s.prev.Rows() != gray.Rows() || s.prev.Cols() != gray.Cols() {
		gray.CopyTo(&s.prev)
		s.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, s.prev, &diff)
	gocv.Threshold(diff, &diff, sceneDiffLevel, 255, gocv.ThresholdBinary)

	pct := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	changed := pct > s.MinChangedPercent
	if changed {
		gray.CopyTo(&s.prev)
	}

	return changed, pct
}

// Reset forgets the reference frame.
func (s *SceneChange) Reset() {
	s.primed = false
}

// Close releases the stored frame.
func (s *SceneChange) Close() {
	s.prev.Close()
	s.primed = false
}
