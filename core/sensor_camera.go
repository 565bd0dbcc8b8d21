package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// cameraChannel synthesizes feature images. Each capture is held for the
// camera latency and delivered once simulated time exceeds its release.
type cameraChannel struct {
	gate      rateGate
	tracker   *featureTracker
	noise     *noiseStream
	bodyToCam model.Xform

	delay      float64
	pixelNoise float64
	depthNoise float64

	pending DelayQueue[model.Image]
	nextID  int

	pixelR *mat.SymDense
	depthR *mat.SymDense
}

func newCameraChannel(cfg config.CameraConfig, env Environment, seed int64, log logging.Logger) *cameraChannel {
	noise := newNoiseStream(seed, streamCamera)
	return &cameraChannel{
		gate: newRateGate(cfg.UpdateRate),
		tracker: &featureTracker{
			cam: CameraModel{
				Focal:     r2.Vec{X: cfg.FocalLen[0], Y: cfg.FocalLen[1]},
				Center:    r2.Vec{X: cfg.Center[0], Y: cfg.Center[1]},
				ImageSize: r2.Vec{X: cfg.ImageSize[0], Y: cfg.ImageSize[1]},
			},
			target:      cfg.NumFeatures,
			loopClosure: cfg.LoopClosure,
			env:         env,
			noise:       noise,
			log:         log,
		},
		noise:      noise,
		bodyToCam:  model.Xform{T: config.Vec3(cfg.PBC), Q: config.Quat(cfg.QBC)},
		delay:      cfg.TimeDelay,
		pixelNoise: stdev(cfg.UseTruth, cfg.PixelStdev),
		depthNoise: stdev(cfg.UseDepthTruth, cfg.DepthStdev),
		pixelR:     diagCov(cfg.PixelStdev, cfg.PixelStdev),
		depthR:     diagCov(cfg.DepthStdev),
	}
}

// cameraPose returns the camera-to-NED transform for vehicle state x.
func (c *cameraChannel) cameraPose(x model.State) model.Xform {
	return x.Pose().Mul(c.bodyToCam)
}

// capture runs the tracker when the camera is due and queues the resulting
// image. It returns the number of tracked features, or -1 when the camera
// did not fire.
func (c *cameraChannel) capture(t float64, x model.State) int {
	if !c.gate.due(t) {
		return -1
	}
	features := c.tracker.update(c.cameraPose(x))
	if len(features) == 0 {
		return 0
	}

	img := model.Image{
		T:          t,
		Pixels:     make([]r2.Vec, len(features)),
		FeatureIDs: make([]int, len(features)),
		Depths:     make([]float64, len(features)),
	}
	for i, f := range features {
		img.FeatureIDs[i] = f.ID
		img.Pixels[i] = r2.Add(f.Pixel, r2.Vec{X: c.noise.Normal(c.pixelNoise), Y: c.noise.Normal(c.pixelNoise)})
		img.Depths[i] = f.Depth + c.noise.Normal(c.depthNoise)
	}
	c.pending.Push(t+c.delay, img)
	return len(features)
}

// deliver returns the images whose release time is strictly before t,
// numbering them in delivery order.
func (c *cameraChannel) deliver(t float64) []model.Image {
	due := c.pending.PopDue(math.Nextafter(t, math.Inf(-1)))
	for i := range due {
		due[i].ID = c.nextID
		c.nextID++
	}
	return due
}
