package physics

import (
	"math"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

// Tank quality bounds.
var (
	PHRange        = [2]float64{6, 9}
	TurbidityRange = [2]float64{0.1, 10}
	ChlorineRange  = [2]float64{0, 2}
	TDSRange       = [2]float64{50, 1000}
	HardnessRange  = [2]float64{50, 600}
	ECRange        = [2]float64{75, 1600}
)

// tdsToEC is the usual conductivity-to-dissolved-solids ratio.
const tdsToEC = 0.64

// StepQuality drifts the tank quality and propagates it down each pipeline.
func StepQuality(s *model.State, cfg Config, env Env) {
	driftTank(&s.Tank.Quality, env)
	for i := range s.Pipelines {
		propagate(&s.Pipelines[i], &s.Tank.Quality, cfg, env)
	}
}

func driftTank(q *model.WaterQuality, env Env) {
	r := env.Rand
	q.PH = Clamp(q.PH+simrand.Noise(r, 0.01), PHRange[0], PHRange[1])
	q.Turbidity = Clamp(simrand.Jitter(r, q.Turbidity, 0.02), TurbidityRange[0], TurbidityRange[1])
	q.Chlorine = Clamp(q.Chlorine+simrand.Noise(r, 0.01), ChlorineRange[0], ChlorineRange[1])
	q.TDS = Clamp(q.TDS+simrand.Noise(r, 1), TDSRange[0], TDSRange[1])
	q.Hardness = Clamp(q.Hardness+simrand.Noise(r, 0.5), HardnessRange[0], HardnessRange[1])
	q.EC = Clamp(simrand.Jitter(r, q.TDS/tdsToEC, 0.005), ECRange[0], ECRange[1])
}

func propagate(p *model.PipelineSegment, tank *model.WaterQuality, cfg Config, env Env) {
	if p.Inlet.Flow > 0 {
		r := env.Rand
		in := &p.Inlet.Quality
		in.PH = Clamp(tank.PH+simrand.Noise(r, 0.02), PHRange[0], PHRange[1])
		in.Turbidity = Clamp(simrand.Jitter(r, tank.Turbidity, 0.01), TurbidityRange[0], TurbidityRange[1])
		in.TDS = Clamp(simrand.Jitter(r, tank.TDS, 0.005), TDSRange[0], TDSRange[1])
		in.ResidualChlorine = tank.Chlorine
		in.Ammonia = 0.05
		in.Ecoli = 0

		outletSample(p, cfg, env)
	}
	// A stagnant line keeps its last sample; the deviation still tracks the tank.
	p.QualityDeviation = Deviation(&p.Outlet.Quality, tank)
}

func outletSample(p *model.PipelineSegment, cfg Config, env Env) {
	in := p.Inlet.Quality
	out := &p.Outlet.Quality

	flowRatio := 1.0
	if p.NominalFlow > 0 {
		flowRatio = Clamp(p.Inlet.Flow/p.NominalFlow, 0.05, 1)
	}
	// km travelled, stretched when the line runs slow.
	age := p.Length / 1000 * (2 - flowRatio)
	leak := Clamp(p.LeakageProbability, 0, 100) / 100

	out.PH = Clamp(in.PH-0.2*leak, PHRange[0], PHRange[1])
	out.Turbidity = Clamp(in.Turbidity*(1+0.5*leak)+0.05*age, TurbidityRange[0], TurbidityRange[1])
	out.TDS = Clamp(in.TDS*(1+0.02*age+0.25*leak), TDSRange[0], TDSRange[1])
	out.ResidualChlorine = Clamp(in.ResidualChlorine*math.Exp(-0.15*age)*(1-0.3*leak), ChlorineRange[0], ChlorineRange[1])
	out.Ammonia = round(in.Ammonia+0.01*age+0.05*leak, 3)

	out.Ecoli = in.Ecoli
	if leak > 0.3 {
		intrusion := (leak - 0.3) * 20
		if out.ResidualChlorine < 0.2 {
			intrusion *= 2
		}
		out.Ecoli = round(out.Ecoli+intrusion, 1)
	}

	// Occasional transient contamination events.
	if simrand.Chance(env.Rand, cfg.AnomalyPerHour*env.hours()) {
		if env.Rand.Intn(2) == 0 {
			out.Turbidity = Clamp(out.Turbidity*simrand.Between(env.Rand, 2, 3), TurbidityRange[0], TurbidityRange[1])
		} else {
			out.ResidualChlorine = Clamp(out.ResidualChlorine*0.3, ChlorineRange[0], ChlorineRange[1])
		}
	}
}

// Deviation is the mean absolute relative difference, in percent, between
// an outlet sample and the tank it came from.
func Deviation(out *model.LineQuality, tank *model.WaterQuality) float64 {
	rel := func(v, ref float64) float64 {
		if ref == 0 {
			return 0
		}
		return math.Abs(v-ref) / ref
	}
	sum := rel(out.PH, tank.PH) +
		rel(out.Turbidity, tank.Turbidity) +
		rel(out.TDS, tank.TDS) +
		rel(out.ResidualChlorine, tank.Chlorine)
	return round(Clamp(sum/4*100, 0, 100), 2)
}
