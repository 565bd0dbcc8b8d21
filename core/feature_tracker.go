package core

import (
	"context"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// Radius (m) around the optical axis ground point searched for landmarks to
// re-acquire.
const retrackRadius = 2.0

// CameraModel is a pinhole camera with focal lengths and principal point in
// pixels. The camera frame has z along the optical axis.
type CameraModel struct {
	Focal     r2.Vec
	Center    r2.Vec
	ImageSize r2.Vec
}

// Project maps a camera-frame direction with positive z to pixels.
func (c CameraModel) Project(zeta r3.Vec) r2.Vec {
	return r2.Vec{
		X: c.Focal.X*zeta.X/zeta.Z + c.Center.X,
		Y: c.Focal.Y*zeta.Y/zeta.Z + c.Center.Y,
	}
}

// Bearing returns the unit camera-frame direction through pixel pix.
func (c CameraModel) Bearing(pix r2.Vec) r3.Vec {
	return r3.Unit(r3.Vec{
		X: (pix.X - c.Center.X) / c.Focal.X,
		Y: (pix.Y - c.Center.Y) / c.Focal.Y,
		Z: 1,
	})
}

// InFrame reports whether pix lies within the image.
func (c CameraModel) InFrame(pix r2.Vec) bool {
	return pix.X >= 0 && pix.Y >= 0 && pix.X <= c.ImageSize.X && pix.Y <= c.ImageSize.Y
}

// featureTracker keeps the set of landmarks currently tracked by the camera.
// Each landmark id appears at most once.
type featureTracker struct {
	cam         CameraModel
	target      int
	loopClosure bool
	env         Environment
	noise       *noiseStream
	log         logging.Logger

	tracked []model.Feature
}

// observe computes the bearing, pixel and depth of landmark id from the
// camera pose. It reports false when the landmark is unknown, behind the
// camera or outside the image.
func (ft *featureTracker) observe(camera model.Xform, id int) (model.Feature, bool) {
	pt, ok := ft.env.Point(id)
	if !ok {
		return model.Feature{}, false
	}
	rel := camera.Transformp(pt)
	depth := r3.Norm(rel)
	if depth == 0 {
		return model.Feature{}, false
	}
	zeta := r3.Scale(1/depth, rel)
	if zeta.Z <= 0 {
		return model.Feature{ID: id, Zeta: zeta}, false
	}
	pix := ft.cam.Project(zeta)
	if !ft.cam.InFrame(pix) {
		return model.Feature{ID: id, Zeta: zeta, Pixel: pix}, false
	}
	return model.Feature{ID: id, Zeta: zeta, Pixel: pix, Depth: depth}, true
}

func (ft *featureTracker) isTracked(id int) bool {
	for _, f := range ft.tracked {
		if f.ID == id {
			return true
		}
	}
	return false
}

// update re-projects every tracked feature from the camera pose, drops the
// ones no longer visible and tops the set back up toward the target count.
func (ft *featureTracker) update(camera model.Xform) []model.Feature {
	kept := ft.tracked[:0]
	for _, f := range ft.tracked {
		nf, ok := ft.observe(camera, f.ID)
		if !ok {
			ft.log.Debug(context.Background(), "dropping feature",
				logging.Int("feature_id", f.ID), logging.Any("zeta", nf.Zeta), logging.Any("pixel", nf.Pixel))
			continue
		}
		kept = append(kept, nf)
	}
	ft.tracked = kept

	if len(ft.tracked) < ft.target && ft.loopClosure {
		ft.retrack(camera)
	}

	// each failed ray costs one attempt; give up after as many failures as
	// features wanted
	for misses := 0; len(ft.tracked) < ft.target && misses < ft.target; {
		f, ok := ft.acquire(camera)
		if !ok {
			misses++
			continue
		}
		ft.tracked = append(ft.tracked, f)
	}

	out := make([]model.Feature, len(ft.tracked))
	copy(out, ft.tracked)
	return out
}

// retrack re-acquires known landmarks near the point where the optical axis
// meets the ground.
func (ft *featureTracker) retrack(camera model.Xform) {
	axis := camera.Q.Rota(r3.Vec{Z: 1})
	if axis.Z <= 0 {
		return
	}
	s := (ft.env.Floor() - camera.T.Z) / axis.Z
	if s <= 0 {
		return
	}
	ground := r3.Add(camera.T, r3.Scale(s, axis))

	for _, lm := range ft.env.NearestPoints(ground, ft.target, retrackRadius) {
		if len(ft.tracked) >= ft.target {
			return
		}
		if ft.isTracked(lm.ID) {
			continue
		}
		if f, ok := ft.observe(camera, lm.ID); ok {
			ft.tracked = append(ft.tracked, f)
		}
	}
}

// acquire registers a new landmark through a random pixel.
func (ft *featureTracker) acquire(camera model.Xform) (model.Feature, bool) {
	pix := r2.Vec{
		X: ft.noise.Uniform(0, ft.cam.ImageSize.X),
		Y: ft.noise.Uniform(0, ft.cam.ImageSize.Y),
	}
	id, ok := ft.env.AddPoint(camera, ft.cam.Bearing(pix))
	if !ok || ft.isTracked(id) {
		return model.Feature{}, false
	}
	return ft.observe(camera, id)
}
