package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Reading profiles the generator draws from.
const (
	profileHealthy = iota
	profileDeficient
	profileBorderline
	profileWide
	profileCount
)

var villages = []string{"Lantau", "Tai O", "Mui Wo", "Sai Kung", "Lamma", "Cheung Chau"}

// Generator produces varied readings from a seeded source.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator creates a generator. A zero seed picks a random one.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns n readings with unique farmer IDs.
func (g *Generator) Generate(n int) []Reading {
	readings := make([]Reading, n)
	for i := range readings {
		readings[i] = g.next(i)
	}
	return readings
}

func (g *Generator) next(i int) Reading {
	dha, vol := g.biometrics()
	return Reading{
		FarmerID:    "FW-" + uuid.NewString()[:8],
		DHAPercent:  dha,
		MRIVolume:   vol,
		PhoneNumber: fmt.Sprintf("9%07d", g.rnd.IntN(10_000_000)),
		VillageName: villages[i%len(villages)],
	}
}

// biometrics draws a (DHA, volume) pair rounded to two decimals.
func (g *Generator) biometrics() (float64, float64) {
	switch g.rnd.IntN(profileCount) {
	case profileHealthy:
		return g.between(4, 8), g.between(0.6, 1)
	case profileDeficient:
		return g.between(0.5, 3), g.between(0.1, 0.45)
	case profileBorderline:
		return g.between(3.5, 5), g.between(0.3, 0.5)
	default:
		return g.between(0, 10), g.between(0, 1)
	}
}

func (g *Generator) between(lo, hi float64) float64 {
	v := lo + g.rnd.Float64()*(hi-lo)
	return float64(int(v*100+0.5)) / 100
}
