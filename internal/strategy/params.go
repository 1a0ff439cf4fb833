package strategy

// Params are the indicator settings shared by every evaluator.
type Params struct {
	RSIPeriod     int
	StochPeriod   int
	StochK        int
	StochD        int
	StochOversold float64

	BBPeriod int
	BBStdDev float64

	TrendEMA      int
	VolumePeriod  int
	VolumeClimax  float64
	MinMeanRevert int

	HMAPeriod   int
	ADXPeriod   int
	ADXStrong   float64
	ADXExhaust  float64
	ADXRelease  float64
	RSIMomentum float64

	ATRPeriod       int
	KeltnerPeriod   int
	KeltnerMult     float64
	SqueezeLookback int
	MinTrend        int

	ATRStopMult float64
	RewardRisk  float64

	// VolatilityRef is the ATR/close ratio that maps to a volatility index of 1.
	VolatilityRef float64
}

func DefaultParams() Params {
	return Params{
		RSIPeriod:     14,
		StochPeriod:   14,
		StochK:        3,
		StochD:        3,
		StochOversold: 20,

		BBPeriod: 20,
		BBStdDev: 2,

		TrendEMA:      200,
		VolumePeriod:  20,
		VolumeClimax:  1.5,
		MinMeanRevert: 200,

		HMAPeriod:   55,
		ADXPeriod:   14,
		ADXStrong:   20,
		ADXExhaust:  30,
		ADXRelease:  25,
		RSIMomentum: 50,

		ATRPeriod:       14,
		KeltnerPeriod:   20,
		KeltnerMult:     1.5,
		SqueezeLookback: 5,
		MinTrend:        60,

		ATRStopMult: 1.5,
		RewardRisk:  2,

		VolatilityRef: 0.02,
	}
}

// withDefaults fills zero fields so a partially filled config section works.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&p.RSIPeriod, d.RSIPeriod)
	setInt(&p.StochPeriod, d.StochPeriod)
	setInt(&p.StochK, d.StochK)
	setInt(&p.StochD, d.StochD)
	setFloat(&p.StochOversold, d.StochOversold)
	setInt(&p.BBPeriod, d.BBPeriod)
	setFloat(&p.BBStdDev, d.BBStdDev)
	setInt(&p.TrendEMA, d.TrendEMA)
	setInt(&p.VolumePeriod, d.VolumePeriod)
	setFloat(&p.VolumeClimax, d.VolumeClimax)
	setInt(&p.MinMeanRevert, d.MinMeanRevert)
	setInt(&p.HMAPeriod, d.HMAPeriod)
	setInt(&p.ADXPeriod, d.ADXPeriod)
	setFloat(&p.ADXStrong, d.ADXStrong)
	setFloat(&p.ADXExhaust, d.ADXExhaust)
	setFloat(&p.ADXRelease, d.ADXRelease)
	setFloat(&p.RSIMomentum, d.RSIMomentum)
	setInt(&p.ATRPeriod, d.ATRPeriod)
	setInt(&p.KeltnerPeriod, d.KeltnerPeriod)
	setFloat(&p.KeltnerMult, d.KeltnerMult)
	setInt(&p.SqueezeLookback, d.SqueezeLookback)
	setInt(&p.MinTrend, d.MinTrend)
	setFloat(&p.ATRStopMult, d.ATRStopMult)
	setFloat(&p.RewardRisk, d.RewardRisk)
	setFloat(&p.VolatilityRef, d.VolatilityRef)
	// evaluators compare against the previous bar
	p.MinMeanRevert = max(p.MinMeanRevert, 2)
	p.MinTrend = max(p.MinTrend, 2)
	return p
}
