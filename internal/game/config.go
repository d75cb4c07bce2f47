package game

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/rewind/internal/ir"
)

// AsteroidSize is the size category of an asteroid.
type AsteroidSize int

const (
	AsteroidSmall  AsteroidSize = 1
	AsteroidMedium AsteroidSize = 2
	AsteroidLarge  AsteroidSize = 3
)

var asteroidRadii = map[AsteroidSize]float64{
	AsteroidSmall:  1.5,
	AsteroidMedium: 3.0,
	AsteroidLarge:  5.0,
}

var asteroidSpeeds = map[AsteroidSize]float64{
	AsteroidSmall:  15.0,
	AsteroidMedium: 10.0,
	AsteroidLarge:  6.0,
}

// Radius returns the collision radius for s.
func (s AsteroidSize) Radius() float64 { return asteroidRadii[s] }

// Speed returns the travel speed for s.
func (s AsteroidSize) Speed() float64 { return asteroidSpeeds[s] }

const (
	// BulletSpeed is the travel speed of a shot.
	BulletSpeed = 50.0

	// BulletLifetime is how long a shot flies before expiring.
	BulletLifetime = 2.0

	// BulletRadius is the collision radius of a shot.
	BulletRadius = 0.5
)

// AsteroidConfig places one asteroid. HP defaults to its size.
type AsteroidConfig struct {
	Origin ir.Vec2
	Angle  float64
	Size   AsteroidSize
	HP     int
	Still  bool
}

// Shot is one entry of the scripted input track.
type Shot struct {
	At     float64
	Origin ir.Vec2
	Angle  float64
}

// Config describes a game world.
type Config struct {
	Screen    Screen
	Asteroids []AsteroidConfig
	Shots     []Shot
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("screen must have a positive size, got %vx%v", c.Screen.Width, c.Screen.Height)
	}
	for i, a := range c.Asteroids {
		if _, ok := asteroidRadii[a.Size]; !ok {
			return fmt.Errorf("asteroid %d: unknown size %d", i, a.Size)
		}
		if a.HP < 0 {
			return fmt.Errorf("asteroid %d: negative hp", i)
		}
	}
	for i, s := range c.Shots {
		if !(s.At > 0) || math.IsInf(s.At, 0) {
			return fmt.Errorf("shot %d: fire time must be positive and finite, got %v", i, s.At)
		}
	}
	return nil
}

// DefaultConfig generates a playfield from seed: asteroids drifting in from
// the edges and a shot every half second aimed at the next live target.
func DefaultConfig(seed uint64) Config {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	screen := Screen{Width: 100, Height: 40}

	sizes := []AsteroidSize{AsteroidLarge, AsteroidLarge, AsteroidMedium, AsteroidMedium, AsteroidSmall}
	cfg := Config{Screen: screen}
	for _, size := range sizes {
		cfg.Asteroids = append(cfg.Asteroids, asteroidAtEdge(rng, screen, size))
	}

	center := screen.Center()
	for i := 0; i < 12; i++ {
		target := cfg.Asteroids[i%len(cfg.Asteroids)]
		at := 1.5 + float64(i)*0.5
		m := target.motion(screen)
		aim := m.At(at).Sub(center)
		cfg.Shots = append(cfg.Shots, Shot{
			At:     at,
			Origin: center,
			Angle:  math.Atan2(aim.Y, aim.X),
		})
	}
	return cfg
}

// asteroidAtEdge starts an asteroid on a random edge heading roughly for
// the center.
func asteroidAtEdge(rng *rand.Rand, screen Screen, size AsteroidSize) AsteroidConfig {
	var p ir.Vec2
	switch rng.IntN(4) {
	case 0:
		p = ir.Vec2{X: rng.Float64() * screen.Width, Y: 1}
	case 1:
		p = ir.Vec2{X: rng.Float64() * screen.Width, Y: screen.Height - 1}
	case 2:
		p = ir.Vec2{X: 1, Y: rng.Float64() * screen.Height}
	default:
		p = ir.Vec2{X: screen.Width - 1, Y: rng.Float64() * screen.Height}
	}

	c := screen.Center()
	angle := math.Atan2(c.Y-p.Y, c.X-p.X)
	angle += (rng.Float64() - 0.5) * math.Pi / 2 // ±45°

	return AsteroidConfig{Origin: p, Angle: angle, Size: size}
}

func (a AsteroidConfig) motion(screen Screen) *Motion {
	m := &Motion{Origin: a.Origin, Screen: screen}
	if !a.Still {
		m.Velocity = Heading(a.Angle).Scale(a.Size.Speed())
	}
	return m
}

func (a AsteroidConfig) hp() int {
	if a.HP > 0 {
		return a.HP
	}
	return int(a.Size)
}
