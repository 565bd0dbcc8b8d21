package core

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// voChannel emits the camera motion since the last keyframe whenever the
// vehicle has moved or turned far enough.
type voChannel struct {
	noise     *noiseStream
	bodyToCam model.Xform

	deltaPos   float64
	deltaAtt   float64
	transNoise float64
	rotNoise   float64

	keyframe model.Xform
	R        *mat.SymDense
}

func newVOChannel(cfg config.VOConfig, cam config.CameraConfig, x0 model.State, seed int64) *voChannel {
	return &voChannel{
		noise:      newNoiseStream(seed, streamVO),
		bodyToCam:  model.Xform{T: config.Vec3(cam.PBC), Q: config.Quat(cam.QBC)},
		deltaPos:   cfg.DeltaPosition,
		deltaAtt:   cfg.DeltaAttitude,
		transNoise: stdev(cfg.UseTruth, cfg.TranslationStdev),
		rotNoise:   stdev(cfg.UseTruth, cfg.RotationStdev),
		keyframe:   x0.Pose(),
		R: diagCov(
			cfg.TranslationStdev, cfg.TranslationStdev, cfg.TranslationStdev,
			cfg.RotationStdev, cfg.RotationStdev, cfg.RotationStdev,
		),
	}
}

// sample returns the keyframe-to-current camera transform when the
// keyframe thresholds are crossed, and starts a new keyframe.
func (c *voChannel) sample(x model.State) (model.Xform, bool) {
	pose := x.Pose()
	dp := r3.Norm(r3.Sub(pose.T, c.keyframe.T))
	dq := r3.Norm(pose.Q.BoxMinus(c.keyframe.Q))
	if dp < c.deltaPos && dq < c.deltaAtt {
		return model.Xform{}, false
	}

	camKey := c.keyframe.Mul(c.bodyToCam)
	camNow := pose.Mul(c.bodyToCam)
	rel := camKey.Inverse().Mul(camNow)
	z := model.Xform{
		T: r3.Add(rel.T, c.noise.NormalVec(c.transNoise)),
		Q: rel.Q.BoxPlus(c.noise.NormalVec(c.rotNoise)),
	}
	c.keyframe = pose
	return z, true
}
