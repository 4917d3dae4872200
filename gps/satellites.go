package gps

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	maxPRN          = 32
	maxUsedSats     = 12
	minPeakElev     = 20
	maxPeakElev     = 88
	risePhase       = 0.02
	maxAzimuthDrift = 0.05 // degrees per tick
)

// SatelliteConfig controls the synthetic constellation
type SatelliteConfig struct {
	Initial    int     `yaml:"initial" json:"initial"`         // visible at start
	MaxVisible int     `yaml:"max_visible" json:"max_visible"` // cap on simultaneously visible
	MinUsed    int     `yaml:"min_used" json:"min_used"`       // floor of the used-in-fix walk
	MinSNR     int     `yaml:"min_snr" json:"min_snr"`
	MaxSNR     int     `yaml:"max_snr" json:"max_snr"`
	PassTicks  int     `yaml:"pass_ticks" json:"pass_ticks"`   // mean ticks from rise to set
	RiseChance float64 `yaml:"rise_chance" json:"rise_chance"` // per tick, while below MaxVisible
}

// DefaultSatelliteConfig returns a 15 satellite sky that changes over minutes
func DefaultSatelliteConfig() SatelliteConfig {
	return SatelliteConfig{
		Initial:    15,
		MaxVisible: 15,
		MinUsed:    4,
		MinSNR:     15,
		MaxSNR:     55,
		PassTicks:  3600,
		RiseChance: 0.01,
	}
}

// Validate checks the constellation limits
func (c SatelliteConfig) Validate() error {
	switch {
	case c.MaxVisible < 0 || c.MaxVisible > maxPRN:
		return fmt.Errorf("%w: max visible %d", ErrInvalidSatellites, c.MaxVisible)
	case c.Initial < 0 || c.Initial > c.MaxVisible:
		return fmt.Errorf("%w: initial %d with max visible %d", ErrInvalidSatellites, c.Initial, c.MaxVisible)
	case c.MinUsed < 0 || c.MinUsed > maxUsedSats:
		return fmt.Errorf("%w: min used %d", ErrInvalidSatellites, c.MinUsed)
	case c.MinSNR < 0 || c.MaxSNR > 99 || c.MinSNR > c.MaxSNR:
		return fmt.Errorf("%w: snr range %d-%d", ErrInvalidSatellites, c.MinSNR, c.MaxSNR)
	case c.PassTicks <= 0:
		return fmt.Errorf("%w: pass ticks %d", ErrInvalidSatellites, c.PassTicks)
	case c.RiseChance < 0 || c.RiseChance > 1:
		return fmt.Errorf("%w: rise chance %v", ErrInvalidSatellites, c.RiseChance)
	}
	return nil
}

// pass is one satellite crossing the sky. Elevation follows
// peak*sin(pi*phase) while phase runs from 0 (rise) to 1 (set).
type pass struct {
	prn     int
	phase   float64
	rate    float64
	peak    float64
	azimuth float64
	azRate  float64
	snr     int
}

func (p pass) elevation() int {
	return int(math.Round(p.peak * math.Sin(math.Pi*p.phase)))
}

// SatelliteModel produces a slowly varying visible constellation. It owns
// its random source, so two models built with the same seed and config
// produce the same sequence of sets.
type SatelliteModel struct {
	cfg    SatelliteConfig
	rng    *rand.Rand
	passes []pass // ordered by PRN
	used   int
	locked bool
	ticks  uint64
	set    SatelliteSet
}

// NewSatelliteModel creates a model with cfg.Initial satellites at random
// points of their passes.
func NewSatelliteModel(cfg SatelliteConfig, seed int64) (*SatelliteModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &SatelliteModel{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		locked: true,
	}

	prns := m.rng.Perm(maxPRN)
	for _, idx := range prns[:cfg.Initial] {
		m.passes = append(m.passes, m.newPass(idx+1, 0.05+0.9*m.rng.Float64()))
	}
	m.sortPasses()

	set, err := m.resolve()
	if err != nil {
		return nil, err
	}
	m.set = set
	return m, nil
}

// SetLocked switches the receiver between searching (no satellites used)
// and tracking.
func (m *SatelliteModel) SetLocked(locked bool) {
	m.locked = locked
}

// Locked reports whether the model is tracking
func (m *SatelliteModel) Locked() bool {
	return m.locked
}

// Set returns a copy of the current constellation
func (m *SatelliteModel) Set() SatelliteSet {
	out := make(SatelliteSet, len(m.set))
	copy(out, m.set)
	return out
}

// Ticks returns how many times Next has been called
func (m *SatelliteModel) Ticks() uint64 {
	return m.ticks
}

// Next moves every satellite one tick along its pass and returns the new
// constellation.
func (m *SatelliteModel) Next() (SatelliteSet, error) {
	m.ticks++

	visible := m.passes[:0]
	for _, p := range m.passes {
		p.phase += p.rate
		p.azimuth = math.Mod(p.azimuth+p.azRate+360, 360)
		p.snr = clampInt(p.snr+m.rng.Intn(5)-2, m.cfg.MinSNR, m.cfg.MaxSNR)
		if p.elevation() <= 0 {
			continue
		}
		visible = append(visible, p)
	}
	m.passes = visible

	if len(m.passes) < m.cfg.MaxVisible && m.rng.Float64() < m.cfg.RiseChance {
		if prn := m.freePRN(); prn > 0 {
			m.passes = append(m.passes, m.newPass(prn, risePhase))
		}
	}
	m.sortPasses()

	set, err := m.resolve()
	if err != nil {
		return nil, err
	}
	m.set = set
	return m.Set(), nil
}

// resolve walks the used count and marks the highest satellites as used
func (m *SatelliteModel) resolve() (SatelliteSet, error) {
	if len(m.passes) > m.cfg.MaxVisible {
		return nil, fmt.Errorf("%w: %d visible exceeds cap %d", ErrInvalidSatelliteCount, len(m.passes), m.cfg.MaxVisible)
	}

	hi := min(maxUsedSats, len(m.passes))
	lo := min(m.cfg.MinUsed, hi)
	switch {
	case !m.locked || hi == 0:
		m.used = 0
	case m.used < lo:
		m.used = lo + m.rng.Intn(hi-lo+1)
	default:
		m.used = clampInt(m.used+m.rng.Intn(3)-1, lo, hi)
	}

	set := make(SatelliteSet, len(m.passes))
	for i, p := range m.passes {
		set[i] = Satellite{
			PRN:       p.prn,
			Elevation: p.elevation(),
			Azimuth:   int(p.azimuth) % 360,
			SNR:       p.snr,
		}
	}

	order := make([]int, len(set))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return set[order[a]].Elevation > set[order[b]].Elevation
	})
	for _, idx := range order[:m.used] {
		set[idx].Used = true
	}

	if n := set.UsedCount(); n > maxUsedSats {
		return nil, fmt.Errorf("%w: %d satellites used in fix", ErrInvalidSatelliteCount, n)
	}
	return set, nil
}

func (m *SatelliteModel) newPass(prn int, phase float64) pass {
	rate := 1 / (float64(m.cfg.PassTicks) * (0.75 + 0.5*m.rng.Float64()))
	return pass{
		prn:     prn,
		phase:   phase,
		rate:    rate,
		peak:    float64(minPeakElev + m.rng.Intn(maxPeakElev-minPeakElev+1)),
		azimuth: float64(m.rng.Intn(360)),
		azRate:  (m.rng.Float64()*2 - 1) * maxAzimuthDrift,
		snr:     m.cfg.MinSNR + m.rng.Intn(m.cfg.MaxSNR-m.cfg.MinSNR+1),
	}
}

func (m *SatelliteModel) freePRN() int {
	taken := make(map[int]bool, len(m.passes))
	for _, p := range m.passes {
		taken[p.prn] = true
	}
	var free []int
	for prn := 1; prn <= maxPRN; prn++ {
		if !taken[prn] {
			free = append(free, prn)
		}
	}
	if len(free) == 0 {
		return 0
	}
	return free[m.rng.Intn(len(free))]
}

func (m *SatelliteModel) sortPasses() {
	sort.Slice(m.passes, func(i, j int) bool { return m.passes[i].prn < m.passes[j].prn })
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
