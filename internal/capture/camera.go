// Package capture reads video frames from a camera device or a video file using GoCV.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings for live devices.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a source that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned once a source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
	// ErrEmptyFrame is returned for a read that produced no image data.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Source identifies where frames come from: a device index or a file path.
type Source struct {
	Device int
	Path   string
}

// ParseSource interprets s as a device index when it is a non-negative
// integer, otherwise as a file path.
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Source{}, errors.New("empty capture source")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return Source{}, fmt.Errorf("invalid device index %d", n)
		}
		return Source{Device: n}, nil
	}
	return Source{Path: s}, nil
}

// IsFile reports whether the source is a video file.
func (s Source) IsFile() bool {
	return s.Path != ""
}

func (s Source) String() string {
	if s.IsFile() {
		return s.Path
	}
	return "device " + strconv.Itoa(s.Device)
}

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Size returns the frame width and height once open.
	Size() (int, int)
	// FrameCount returns the total frames of a file source, or 0 if unknown.
	FrameCount() int
}

// videoCamera reads frames through gocv.VideoCapture.
type videoCamera struct {
	source  Source
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
	width   int
	height  int
}

// NewCamera creates a Camera for the given source.
func NewCamera(source Source) Camera {
	return &videoCamera{
		source: source,
		fps:    DefaultFPS,
	}
}

// Open opens the source. Live devices are asked for 640x480; files keep
// their own resolution and frame rate.
func (c *videoCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if c.source.IsFile() {
		capture, err = gocv.OpenVideoCapture(c.source.Path)
	} else {
		capture, err = gocv.OpenVideoCapture(c.source.Device)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", c.source, err)
	}

	if c.source.IsFile() {
		if fps := int(capture.Get(gocv.VideoCaptureFPS)); fps > 0 {
			c.fps = fps
		}
	} else {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	c.width = int(capture.Get(gocv.VideoCaptureFrameWidth))
	c.height = int(capture.Get(gocv.VideoCaptureFrameHeight))
	c.capture = capture
	c.running = true

	return nil
}

// Close closes the source and releases resources.
func (c *videoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame. A failed read means the file ended or
// the device went away and yields ErrEndOfStream.
func (c *videoCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, ErrEndOfStream
	}

	if mat.Empty() {
		mat.Close()
		if c.source.IsFile() {
			return nil, ErrEndOfStream
		}
		return nil, ErrEmptyFrame
	}

	c.width, c.height = mat.Cols(), mat.Rows()
	return &mat, nil
}

// SetFPS sets the requested frames per second for live devices.
// Values less than or equal to 0 are ignored.
func (c *videoCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil && !c.source.IsFile() {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *videoCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the source is currently open.
func (c *videoCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *videoCamera) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.width, c.height
}

func (c *videoCamera) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil || !c.source.IsFile() {
		return 0
	}
	return int(c.capture.Get(gocv.VideoCaptureFrameCount))
}
