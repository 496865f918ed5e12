package InputParameters

import (
	"fmt"
	"math"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/globemesh/types"
)

// Radii of the discontinuities used to cut the sphere into base layers, in meters
type Radii struct {
	Earth           float64 `json:"Earth"`
	MiddleCrust     float64 `json:"MiddleCrust"`
	Moho            float64 `json:"Moho"`
	MohoFictitious  float64 `json:"MohoFictitious"` // mesh boundary used in place of the Moho
	R80             float64 `json:"R80"`
	R220            float64 `json:"R220"`
	R400            float64 `json:"R400"`
	R600            float64 `json:"R600"`
	R670            float64 `json:"R670"`
	R771            float64 `json:"R771"`
	TopDDoublePrime float64 `json:"TopDDoublePrime"`
	CMB             float64 `json:"CMB"`
	ICB             float64 `json:"ICB"`
	CentralCube     float64 `json:"CentralCube"`
}

// Depths below the surface, in meters
type Doublings struct {
	Second       float64 `json:"Second"`
	Third        float64 `json:"Third"`
	Fourth       float64 `json:"Fourth"`
	EnableFourth bool    `json:"EnableFourth"`
}

type AttenuationParameters struct {
	Entries    int     `json:"Entries"`
	Resolution int     `json:"Resolution"` // decimal places kept in Q
	MaximumQ   float64 `json:"MaximumQ"`
	NSLS       int     `json:"NSLS"`
	MinPeriod  float64 `json:"MinPeriod"` // seconds
	MaxPeriod  float64 `json:"MaxPeriod"`
}

type GravityParameters struct {
	Entries int     `json:"Entries"`
	G       float64 `json:"G"`
}

// MeshParameters is the immutable input to every mesher component. Build one
// with NewDefaultParameters, optionally Parse a YAML file over it, then Validate.
type MeshParameters struct {
	Title              string                `json:"Title"`
	NEX                int                   `json:"NEX"` // surface elements along each chunk side
	NProcXi            int                   `json:"NProcXi"`
	NProcEta           int                   `json:"NProcEta"`
	NChunks            int                   `json:"NChunks"`
	Projection         string                `json:"Projection"`
	NGLL               int                   `json:"NGLL"`
	Radii              Radii                 `json:"Radii"`
	LayerElements      []int                 `json:"LayerElements"` // radial elements per base layer
	Doublings          Doublings             `json:"Doublings"`
	CoupleFluidCMB     bool                  `json:"CoupleFluidCMB"`
	CoupleFluidICB     bool                  `json:"CoupleFluidICB"`
	IncludeCentralCube bool                  `json:"IncludeCentralCube"`
	Attenuation        AttenuationParameters `json:"Attenuation"`
	Gravity            GravityParameters     `json:"Gravity"`
	Tolerance          float64               `json:"Tolerance"` // geometric match tolerance, meters
}

const (
	NBLayersSamplingStudy = 11
	ProjectionEqualAngle  = "equal-angle"
	ProjectionGnomonic    = "gnomonic"
)

var DefaultLayerElements = []int{1, 1, 2, 2, 2, 1, 2, 8, 1, 10, 2}

func NewDefaultParameters() *MeshParameters {
	le := make([]int, len(DefaultLayerElements))
	copy(le, DefaultLayerElements)
	return &MeshParameters{
		Title:      "globe",
		NEX:        16,
		NProcXi:    1,
		NProcEta:   1,
		NChunks:    6,
		Projection: ProjectionEqualAngle,
		NGLL:       5,
		Radii: Radii{
			Earth:           6371000,
			MiddleCrust:     6356000,
			Moho:            6346600,
			MohoFictitious:  6330000,
			R80:             6291000,
			R220:            6151000,
			R400:            5971000,
			R600:            5771000,
			R670:            5701000,
			R771:            5600000,
			TopDDoublePrime: 3630000,
			CMB:             3480000,
			ICB:             1221000,
			CentralCube:     965000,
		},
		LayerElements: le,
		Doublings: Doublings{
			Second: 1650000,
			Third:  3860000,
			Fourth: 5000000,
		},
		CoupleFluidCMB:     true,
		CoupleFluidICB:     true,
		IncludeCentralCube: true,
		Attenuation: AttenuationParameters{
			Entries:    70000,
			Resolution: 1,
			MaximumQ:   5000,
			NSLS:       3,
			MinPeriod:  20,
			MaxPeriod:  1000,
		},
		Gravity: GravityParameters{
			Entries: 70000,
			G:       6.6723e-11,
		},
		Tolerance: 1.e-5,
	}
}

func (mp *MeshParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, mp)
}

// DoublingDepths returns the enabled doubling depths in the order second, third, fourth
func (mp *MeshParameters) DoublingDepths() (depths []float64) {
	depths = []float64{mp.Doublings.Second, mp.Doublings.Third}
	if mp.Doublings.EnableFourth {
		depths = append(depths, mp.Doublings.Fourth)
	}
	return
}

// BaseBoundaries returns the NBLayersSamplingStudy+1 radii bounding the base
// layers, surface first
func (mp *MeshParameters) BaseBoundaries() []float64 {
	r := mp.Radii
	return []float64{r.Earth, r.MohoFictitious, r.R80, r.R220, r.R400, r.R600,
		r.R670, r.R771, r.TopDDoublePrime, r.CMB, r.ICB, r.CentralCube}
}

// Validate checks every parameter combination that can be decided without
// planning the radial layers.
func (mp *MeshParameters) Validate() error {
	cfg := types.NewConfigurationError
	if mp.NEX <= 0 {
		return cfg("NEX", "must be positive, have %d", mp.NEX)
	}
	switch mp.NChunks {
	case 1, 2, 3, 6:
	default:
		return cfg("NChunks", "must be 1, 2, 3 or 6, have %d", mp.NChunks)
	}
	if mp.NProcXi <= 0 || mp.NProcEta <= 0 {
		return cfg("NProcXi/NProcEta", "process grid %dx%d is empty", mp.NProcXi, mp.NProcEta)
	}
	if mp.NChunks > 1 && mp.NProcXi != mp.NProcEta {
		return cfg("NProcXi/NProcEta", "must be equal when meshing %d chunks, have %d and %d",
			mp.NChunks, mp.NProcXi, mp.NProcEta)
	}
	if mp.NEX%mp.NProcXi != 0 {
		return cfg("NProcXi", "NEX %d is not divisible by %d processes", mp.NEX, mp.NProcXi)
	}
	if mp.NEX%mp.NProcEta != 0 {
		return cfg("NProcEta", "NEX %d is not divisible by %d processes", mp.NEX, mp.NProcEta)
	}
	nd := len(mp.DoublingDepths())
	if footprint := 1 << (nd + 1); mp.NEX%footprint != 0 {
		return cfg("NEX", "%d is not divisible by the doubling brick footprint %d", mp.NEX, footprint)
	}
	coarsest := 1 << nd
	for _, w := range [2]int{mp.NEX / mp.NProcXi, mp.NEX / mp.NProcEta} {
		if w%coarsest != 0 {
			return cfg("NProcXi/NProcEta", "slice width %d is not a multiple of the coarsest element width %d",
				w, coarsest)
		}
	}
	if mp.Projection != ProjectionEqualAngle && mp.Projection != ProjectionGnomonic {
		return cfg("Projection", "unknown projection %q", mp.Projection)
	}
	if mp.NGLL < 2 {
		return cfg("NGLL", "need at least 2 points per direction, have %d", mp.NGLL)
	}
	bounds := mp.BaseBoundaries()
	for i := 1; i < len(bounds); i++ {
		if !(bounds[i] < bounds[i-1]) || bounds[i] <= 0 {
			return cfg("Radii", "discontinuity radii must decrease strictly to a positive central cube, have %.1f after %.1f",
				bounds[i], bounds[i-1])
		}
	}
	if mp.Radii.Moho > mp.Radii.Earth || mp.Radii.Moho < mp.Radii.R80 {
		return cfg("Radii.Moho", "%.1f lies outside the crust", mp.Radii.Moho)
	}
	if len(mp.LayerElements) != NBLayersSamplingStudy {
		return cfg("LayerElements", "need %d entries, have %d", NBLayersSamplingStudy, len(mp.LayerElements))
	}
	for i, n := range mp.LayerElements {
		if n < 1 {
			return cfg("LayerElements", "base layer %d has %d elements", i, n)
		}
	}
	for i, d := range mp.DoublingDepths() {
		if d <= 0 || d >= mp.Radii.Earth-mp.Radii.CentralCube {
			return cfg("Doublings", "doubling %d depth %.1f is outside the meshed shell", i+2, d)
		}
	}
	at := mp.Attenuation
	if at.Entries < 2 || at.NSLS < 1 || at.Resolution < 0 || at.MaximumQ <= 0 {
		return cfg("Attenuation", "invalid table settings %+v", at)
	}
	if !(at.MinPeriod > 0 && at.MaxPeriod > at.MinPeriod) {
		return cfg("Attenuation", "period band [%g, %g] is empty", at.MinPeriod, at.MaxPeriod)
	}
	if mp.Gravity.Entries < 2 || mp.Gravity.G <= 0 {
		return cfg("Gravity", "invalid table settings %+v", mp.Gravity)
	}
	if !(mp.Tolerance > 0) || math.IsInf(mp.Tolerance, 0) {
		return cfg("Tolerance", "must be positive, have %g", mp.Tolerance)
	}
	return nil
}

// AttenuationRegion selects the attenuation band containing radius (meters)
func (r Radii) AttenuationRegion(radius float64) types.AttenuationRegion {
	switch {
	case radius <= r.ICB:
		return types.AttenuationInnerCore
	case radius <= r.R670:
		return types.AttenuationCMB670
	case radius <= r.R220:
		return types.Attenuation670_220
	case radius <= r.R80:
		return types.Attenuation220_80
	}
	return types.Attenuation80Surface
}

func (mp *MeshParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", mp.Title)
	fmt.Printf("[%d]\t\t\t\t= NEX\n", mp.NEX)
	fmt.Printf("[%d x %d]\t\t\t= Process Grid\n", mp.NProcXi, mp.NProcEta)
	fmt.Printf("[%d]\t\t\t\t= Chunks\n", mp.NChunks)
	fmt.Printf("[%s]\t\t\t= Projection\n", mp.Projection)
	fmt.Printf("[%d]\t\t\t\t= GLL points\n", mp.NGLL)
	fmt.Printf("%v\t= Doubling depths\n", mp.DoublingDepths())
	fmt.Printf("%v\t= Layer elements\n", mp.LayerElements)
	fmt.Printf("[%t/%t]\t\t\t= Couple fluid CMB/ICB\n", mp.CoupleFluidCMB, mp.CoupleFluidICB)
	fmt.Printf("[%t]\t\t\t\t= Central cube\n", mp.IncludeCentralCube)
	radii := map[string]float64{
		"Earth": mp.Radii.Earth, "Moho": mp.Radii.Moho, "MohoFictitious": mp.Radii.MohoFictitious,
		"R80": mp.Radii.R80, "R220": mp.Radii.R220, "R400": mp.Radii.R400, "R600": mp.Radii.R600,
		"R670": mp.Radii.R670, "R771": mp.Radii.R771, "TopDDoublePrime": mp.Radii.TopDDoublePrime,
		"CMB": mp.Radii.CMB, "ICB": mp.Radii.ICB, "CentralCube": mp.Radii.CentralCube,
	}
	keys := make([]string, len(radii))
	i := 0
	for k := range radii {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Radii[%s] = %.1f\n", key, radii[key])
	}
}
