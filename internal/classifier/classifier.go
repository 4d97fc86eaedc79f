// Package classifier loads the pre-trained direction model and exposes it
// behind a narrow Predict call.
package classifier

import (
	"errors"
	"math"
)

// Labels returned by Predict.
const (
	LabelDown = -1
	LabelNone = 0
	LabelUp   = 1
)

// Prediction is the model verdict for one feature vector.
type Prediction struct {
	Label      int
	Confidence float64 // percent, 0..100
}

// Classifier is the only surface the signal engine depends on.
type Classifier interface {
	Predict(features []float32) (Prediction, error)
}

// ErrNoModel is returned when neither the primary nor the backup model can
// be loaded.
var ErrNoModel = errors.New("no valid model could be loaded")

// interpret turns raw model outputs into a Prediction.
// One output is read as P(up). Two outputs are [down, up]; a third output,
// when present, is "no move". Logits are normalised with softmax.
func interpret(out []float32) Prediction {
	switch len(out) {
	case 0:
		return Prediction{Label: LabelNone}
	case 1:
		p := float64(out[0])
		if p < 0 || p > 1 {
			p = 1 / (1 + math.Exp(-p))
		}
		if p >= 0.5 {
			return Prediction{Label: LabelUp, Confidence: p * 100}
		}
		return Prediction{Label: LabelDown, Confidence: (1 - p) * 100}
	}
	probs := normalise(out)
	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	label := LabelNone
	switch best {
	case 0:
		label = LabelDown
	case 1:
		label = LabelUp
	}
	return Prediction{Label: label, Confidence: probs[best] * 100}
}

func normalise(out []float32) []float64 {
	probs := make([]float64, len(out))
	sum := 0.0
	isProb := true
	for i, v := range out {
		probs[i] = float64(v)
		if v < 0 || v > 1 {
			isProb = false
		}
		sum += probs[i]
	}
	if isProb && math.Abs(sum-1) < 1e-3 {
		return probs
	}
	maxV := probs[0]
	for _, v := range probs {
		maxV = math.Max(maxV, v)
	}
	sum = 0
	for i, v := range probs {
		probs[i] = math.Exp(v - maxV)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
