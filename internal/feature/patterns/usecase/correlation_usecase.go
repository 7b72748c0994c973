// Package usecase implements correlation evaluation and the pattern catalog.
package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Admission thresholds. A pattern is admissible only with a full sample AND a
// meaningful linear or directional relationship.
const (
	MinSampleSize          = 30
	MinAbsCoefficient      = 0.3
	MinDirectionalAccuracy = 60.0

	defaultOracleTimeout = 15 * time.Second
)

// MovePair is one aligned (driver move, target move) observation, in percent.
type MovePair struct {
	DriverMovePct float64
	TargetMovePct float64
}

// Evaluation is the statistical summary of a paired move set.
type Evaluation struct {
	Coefficient         float64 // Pearson, in [-1,1]
	DirectionalAccuracy float64 // 0..100
	AvgDriverMove       float64
	AvgTargetMove       float64
	SampleSize          int
	Admissible          bool
}

// SignificanceOracle gives a qualitative judgment on whether a statistically
// marginal pattern is nonetheless meaningful. It is strictly optional: the
// numeric thresholds are the default and final authority whenever the oracle
// is absent, slow, or broken.
type SignificanceOracle interface {
	Judge(ctx context.Context, driverSymbol, targetSymbol string, eval Evaluation) (bool, error)
}

// CorrelationUsecase computes correlation statistics and the admission
// decision for (driver, target) move pairs.
type CorrelationUsecase struct {
	oracle        SignificanceOracle // may be nil
	oracleTimeout time.Duration
}

// NewCorrelationUsecase creates a CorrelationUsecase. oracle may be nil.
func NewCorrelationUsecase(oracle SignificanceOracle) *CorrelationUsecase {
	return &CorrelationUsecase{oracle: oracle, oracleTimeout: defaultOracleTimeout}
}

// Evaluate computes the Pearson coefficient, directional agreement and the
// threshold-based admission decision. It is deterministic: identical pairs
// always produce the identical evaluation.
func (cu *CorrelationUsecase) Evaluate(pairs []MovePair) Evaluation {
	n := len(pairs)
	ev := Evaluation{SampleSize: n}
	if n == 0 {
		return ev
	}

	var sumD, sumT float64
	for _, p := range pairs {
		sumD += p.DriverMovePct
		sumT += p.TargetMovePct
	}
	meanD := sumD / float64(n)
	meanT := sumT / float64(n)
	ev.AvgDriverMove = meanD
	ev.AvgTargetMove = meanT

	var num, varD, varT float64
	agree := 0
	for _, p := range pairs {
		dd := p.DriverMovePct - meanD
		dt := p.TargetMovePct - meanT
		num += dd * dt
		varD += dd * dd
		varT += dt * dt
		if sameSign(p.DriverMovePct, p.TargetMovePct) {
			agree++
		}
	}

	// Coefficient is 0 when either series is constant.
	if den := math.Sqrt(varD * varT); den != 0 {
		ev.Coefficient = num / den
	}
	ev.DirectionalAccuracy = float64(agree) / float64(n) * 100

	ev.Admissible = n >= MinSampleSize &&
		(math.Abs(ev.Coefficient) > MinAbsCoefficient || ev.DirectionalAccuracy > MinDirectionalAccuracy)
	return ev
}

// EvaluateWithOracle runs Evaluate and then, when an oracle is configured and
// the sample floor is met, lets the oracle override the threshold decision.
// The sample-size floor is never overridable, and any oracle failure falls
// back to the statistical decision.
func (cu *CorrelationUsecase) EvaluateWithOracle(ctx context.Context, driverSymbol, targetSymbol string, pairs []MovePair) Evaluation {
	ev := cu.Evaluate(pairs)
	if cu.oracle == nil || ev.SampleSize < MinSampleSize {
		return ev
	}

	octx, cancel := context.WithTimeout(ctx, cu.oracleTimeout)
	defer cancel()

	meaningful, err := cu.oracle.Judge(octx, driverSymbol, targetSymbol, ev)
	if err != nil {
		slog.Warn("significance oracle unavailable, keeping statistical decision",
			"driver", driverSymbol, "target", targetSymbol, "error", err)
		return ev
	}
	if meaningful != ev.Admissible {
		slog.Info("significance oracle overrode admission decision",
			"driver", driverSymbol, "target", targetSymbol,
			"statistical", ev.Admissible, "oracle", meaningful)
	}
	ev.Admissible = meaningful
	return ev
}

// sameSign reports directional agreement. Zero only agrees with zero.
func sameSign(a, b float64) bool {
	return sign(a) == sign(b)
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
