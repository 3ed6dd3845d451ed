package seed

import (
	"math/rand"

	perlin "github.com/aquilax/go-perlin"

	"toruslife/src/universe"
)

//perlin noise parameters
const (
	noiseAlpha   = 2.
	noiseBeta    = 2.
	noiseOctaves = 3
	noiseScale   = 0.11
)

//Random returns the cells of a width x height field, each alive with the given probability
func Random(width, height uint32, density float64, rng *rand.Rand) []universe.Coord {
	var cells []universe.Coord
	for row := uint32(0); row < height; row++ {
		for col := uint32(0); col < width; col++ {
			if rng.Float64() < density {
				cells = append(cells, universe.Coord{Row: row, Col: col})
			}
		}
	}
	return cells
}

//Noise returns the cells where the 2D perlin noise is above threshold
//the noise values lie roughly in [-1, 1], a threshold around 0.1 keeps a third of the field
//the result depends only on the dimension, threshold and seed
func Noise(width, height uint32, threshold float64, seed int64) []universe.Coord {
	p := perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)
	var cells []universe.Coord
	for row := uint32(0); row < height; row++ {
		for col := uint32(0); col < width; col++ {
			if p.Noise2D(float64(col)*noiseScale, float64(row)*noiseScale) > threshold {
				cells = append(cells, universe.Coord{Row: row, Col: col})
			}
		}
	}
	return cells
}
