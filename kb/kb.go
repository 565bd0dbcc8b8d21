package kb

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/multirotor-sim/core"
	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// environmentStream is the noise stream index reserved for landmark
// placement.
const environmentStream = 8

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventLandmarkAdded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Landmark core.Landmark
}

// landmark is the k-d tree element.
type landmark struct {
	id  int
	pos r3.Vec
}

func (l landmark) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	o := c.(landmark)
	switch d {
	case 0:
		return l.pos.X - o.pos.X
	case 1:
		return l.pos.Y - o.pos.Y
	default:
		return l.pos.Z - o.pos.Z
	}
}

func (landmark) Dims() int { return 3 }

func (l landmark) Distance(c kdtree.Comparable) float64 {
	d := r3.Sub(l.pos, c.(landmark).pos)
	return r3.Dot(d, d)
}

type subscriber struct {
	id int
	fn func(Event)
}

// KnowledgeBase is an in-memory, thread-safe landmark store over a ground
// plane. It implements core.Environment.
type KnowledgeBase struct {
	mu sync.RWMutex

	floor           float64
	heightVariation float64
	maxRange        float64
	height          distuv.Uniform

	points []r3.Vec
	tree   kdtree.Tree

	subs    []subscriber
	nextSub int
}

var _ core.Environment = (*KnowledgeBase)(nil)

// NewKnowledgeBase constructs an empty KB. Landmark heights are drawn from a
// stream seeded by seed.
func NewKnowledgeBase(cfg config.EnvironmentConfig, seed int64) *KnowledgeBase {
	return &KnowledgeBase{
		floor:           cfg.Floor,
		heightVariation: cfg.HeightVariation,
		maxRange:        cfg.MaxRange,
		height: distuv.Uniform{
			Min: -cfg.HeightVariation,
			Max: cfg.HeightVariation,
			Src: rand.NewPCG(uint64(seed), environmentStream),
		},
	}
}

// Floor is the NED depth of the nominal ground plane.
func (kb *KnowledgeBase) Floor() float64 { return kb.floor }

// Len returns the number of landmarks.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.points)
}

// Points returns a snapshot of every landmark position, indexed by id.
func (kb *KnowledgeBase) Points() []r3.Vec {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]r3.Vec, len(kb.points))
	copy(res, kb.points)
	return res
}

// Point returns the landmark with the given id.
func (kb *KnowledgeBase) Point(id int) (r3.Vec, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if id < 0 || id >= len(kb.points) {
		return r3.Vec{}, false
	}
	return kb.points[id], true
}

// Insert stores a landmark at pos and returns its id.
func (kb *KnowledgeBase) Insert(pos r3.Vec) int {
	kb.mu.Lock()
	id := kb.insertLocked(pos)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventLandmarkAdded, Landmark: core.Landmark{ID: id, Position: pos}})
	return id
}

// AddPoint creates a landmark where the ray from the camera along bearing
// (camera frame) meets the ground, whose height varies per landmark. It
// reports false when the ray points away from the ground or the hit lies
// beyond the maximum range.
func (kb *KnowledgeBase) AddPoint(camera model.Xform, bearing r3.Vec) (int, bool) {
	dir := camera.Q.Rota(bearing)
	if dir.Z <= 0 {
		return 0, false
	}

	kb.mu.Lock()
	ground := kb.floor + kb.height.Rand()
	s := (ground - camera.T.Z) / dir.Z
	if s <= 0 || s*r3.Norm(dir) > kb.maxRange {
		kb.mu.Unlock()
		return 0, false
	}
	pos := r3.Add(camera.T, r3.Scale(s, dir))
	id := kb.insertLocked(pos)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventLandmarkAdded, Landmark: core.Landmark{ID: id, Position: pos}})
	return id, true
}

// NearestPoints returns up to k landmarks within maxRadius of pt, nearest
// first.
func (kb *KnowledgeBase) NearestPoints(pt r3.Vec, k int, maxRadius float64) []core.Landmark {
	if k <= 0 || maxRadius < 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	keep.Heap[0].Dist = maxRadius * maxRadius

	kb.mu.RLock()
	kb.tree.NearestSet(keep, landmark{pos: pt})
	kb.mu.RUnlock()

	res := make([]core.Landmark, 0, keep.Len())
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		l := c.Comparable.(landmark)
		res = append(res, core.Landmark{ID: l.id, Position: l.pos})
	}
	return res
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs = append(kb.subs, subscriber{id: id, fn: fn})

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		for i, s := range kb.subs {
			if s.id == id {
				kb.subs = append(kb.subs[:i], kb.subs[i+1:]...)
				return
			}
		}
	}
}

func (kb *KnowledgeBase) insertLocked(pos r3.Vec) int {
	id := len(kb.points)
	kb.points = append(kb.points, pos)
	kb.tree.Insert(landmark{id: id, pos: pos}, false)
	return id
}

func (kb *KnowledgeBase) snapshotSubs() []subscriber {
	return append([]subscriber(nil), kb.subs...)
}

// notify runs outside the lock so subscribers may call back into the KB.
func notify(subs []subscriber, e Event) {
	for _, s := range subs {
		s.fn(e)
	}
}
