package main

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/perimeter-labs/trackmatch/internal/config"
	"github.com/perimeter-labs/trackmatch/internal/mot"
)

// groundTruth is one simulated object moving at constant velocity.
type groundTruth struct {
	x, y          float64 // top-left, px
	vx, vy        float64 // px per frame
	width, height float64
	feature       []float64 // base appearance, unit length
}

// scenario drives a set of constant-velocity objects around a
// rectangular arena and emits noisy detections for each frame:
// positions jitter by MeasurementNoise, each object is dropped with
// probability MissRate, and Poisson-distributed clutter boxes with
// unrelated appearance are mixed in.
type scenario struct {
	Name        string
	ArenaWidth  float64
	ArenaHeight float64

	MissRate         float64
	ClutterRate      float64
	MeasurementNoise float64
	FeatureNoise     float64
	FeatureDim       int

	objects []*groundTruth
	rng     *rand.Rand
}

func newScenario(name string, objects int, cfg *config.TuningConfig, rng *rand.Rand) *scenario {
	s := &scenario{
		Name:             name,
		ArenaWidth:       cfg.GetSimArenaWidth(),
		ArenaHeight:      cfg.GetSimArenaHeight(),
		MissRate:         cfg.GetSimMissRate(),
		ClutterRate:      cfg.GetSimClutterRate(),
		MeasurementNoise: cfg.GetSimMeasurementNoise(),
		FeatureNoise:     cfg.GetSimFeatureNoise(),
		FeatureDim:       cfg.GetSimFeatureDim(),
		rng:              rng,
	}

	for i := 0; i < objects; i++ {
		width := 40 + rng.Float64()*40
		height := 80 + rng.Float64()*80
		speed := 2 + rng.Float64()*6
		angle := rng.Float64() * 2 * math.Pi

		s.objects = append(s.objects, &groundTruth{
			x:       rng.Float64() * (s.ArenaWidth - width),
			y:       rng.Float64() * (s.ArenaHeight - height),
			vx:      speed * math.Cos(angle),
			vy:      speed * math.Sin(angle),
			width:   width,
			height:  height,
			feature: randomUnitVector(rng, s.FeatureDim),
		})
	}
	return s
}

// Step advances every object one frame and returns the detections the
// simulated detector would report, in shuffled order so detection
// position never encodes identity.
func (s *scenario) Step() []mot.Detection {
	var detections []mot.Detection

	for _, obj := range s.objects {
		obj.x += obj.vx
		obj.y += obj.vy

		// Bounce off the arena walls.
		if obj.x < 0 {
			obj.x = -obj.x
			obj.vx = -obj.vx
		}
		if obj.x+obj.width > s.ArenaWidth {
			obj.x = 2*(s.ArenaWidth-obj.width) - obj.x
			obj.vx = -obj.vx
		}
		if obj.y < 0 {
			obj.y = -obj.y
			obj.vy = -obj.vy
		}
		if obj.y+obj.height > s.ArenaHeight {
			obj.y = 2*(s.ArenaHeight-obj.height) - obj.y
			obj.vy = -obj.vy
		}

		if s.rng.Float64() < s.MissRate {
			continue
		}
		detections = append(detections, s.observe(obj))
	}

	for n := s.poisson(s.ClutterRate); n > 0; n-- {
		detections = append(detections, s.clutter())
	}

	s.rng.Shuffle(len(detections), func(i, j int) {
		detections[i], detections[j] = detections[j], detections[i]
	})
	return detections
}

// observe turns a ground-truth object into a noisy detection.
func (s *scenario) observe(obj *groundTruth) mot.Detection {
	return mot.Detection{
		Box: mot.BoundingBox{
			X:      obj.x + s.rng.NormFloat64()*s.MeasurementNoise,
			Y:      obj.y + s.rng.NormFloat64()*s.MeasurementNoise,
			Width:  obj.width + s.rng.NormFloat64()*s.MeasurementNoise*0.5,
			Height: obj.height + s.rng.NormFloat64()*s.MeasurementNoise*0.5,
		},
		Confidence: 0.7 + s.rng.Float64()*0.3,
		Feature:    s.perturbFeature(obj.feature),
	}
}

// clutter produces a false detection at a random arena position with an
// appearance unrelated to any object.
func (s *scenario) clutter() mot.Detection {
	width := 20 + s.rng.Float64()*80
	height := 40 + s.rng.Float64()*140
	return mot.Detection{
		Box: mot.BoundingBox{
			X:      s.rng.Float64() * (s.ArenaWidth - width),
			Y:      s.rng.Float64() * (s.ArenaHeight - height),
			Width:  width,
			Height: height,
		},
		Confidence: 0.3 + s.rng.Float64()*0.4,
		Feature:    randomUnitVector(s.rng, s.FeatureDim),
	}
}

func (s *scenario) perturbFeature(base []float64) []float64 {
	out := make([]float64, len(base))
	for i, v := range base {
		out[i] = v + s.rng.NormFloat64()*s.FeatureNoise
	}
	normalize(out)
	return out
}

// poisson samples a Poisson count via Knuth's method; fine for the
// small rates used here.
func (s *scenario) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= s.rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

func randomUnitVector(rng *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	normalize(v)
	return v
}

func normalize(v []float64) {
	if norm := floats.Norm(v, 2); norm > 0 {
		floats.Scale(1/norm, v)
	}
}
