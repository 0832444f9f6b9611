// Package tempo decomposes a playback speed factor into a chain of atempo
// stages. A single atempo filter only accepts factors in [0.5, 2.0], so
// larger changes are reached by chaining.
package tempo

const (
	StageMin = 0.5
	StageMax = 2.0

	// FinalMin and FinalMax bound the last stage; ffmpeg rejects anything
	// outside them.
	FinalMin = 0.01
	FinalMax = 100.0

	Neutral = 1.0

	degenerateSpeed = 0.001
	maxIterations   = 10
)

// Plan returns the ordered tempo stages for speed. The product of the stages
// equals speed, except for factors so extreme that the iteration cap stops
// the decomposition early.
func Plan(speed float64) []float64 {
	if speed <= degenerateSpeed {
		return []float64{Neutral}
	}

	stages := make([]float64, 0, maxIterations+1)
	remainder := speed
	for i := 0; i < maxIterations && (remainder < StageMin || remainder > StageMax); i++ {
		if remainder < StageMin {
			stages = append(stages, StageMin)
			remainder /= StageMin
		} else {
			stages = append(stages, StageMax)
			remainder /= StageMax
		}
	}

	switch {
	case remainder == Neutral && len(stages) > 0:
		// exact landing, nothing left to apply
	case remainder >= FinalMin && remainder <= FinalMax:
		stages = append(stages, remainder)
	case len(stages) == 0:
		stages = append(stages, Neutral)
	}
	return stages
}

// Product multiplies the stages.
func Product(stages []float64) float64 {
	p := 1.0
	for _, s := range stages {
		p *= s
	}
	return p
}
