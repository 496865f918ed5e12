package types

import "fmt"

type Region uint8

const (
	CrustMantle Region = iota + 1
	OuterCore
	InnerCore
)

func (r Region) String() string {
	switch r {
	case CrustMantle:
		return "crust_mantle"
	case OuterCore:
		return "outer_core"
	case InnerCore:
		return "inner_core"
	}
	return fmt.Sprintf("Region(%d)", r)
}

// IsFluid is true only for the outer core.
func (r Region) IsFluid() bool { return r == OuterCore }

// Flag is the material/attenuation sub-region of an element. Values match the
// historical integer flags 1..10.
type Flag uint8

const (
	FlagCrust Flag = iota + 1
	Flag220Moho
	Flag670_220
	FlagMantleNormal
	FlagOuterCoreNormal
	FlagInnerCoreNormal
	FlagInCentralCube
	FlagBottomCentralCube
	FlagTopCentralCube
	FlagInFictitiousCube
)

var flagNames = map[Flag]string{
	FlagCrust:             "CRUST",
	Flag220Moho:           "220_MOHO",
	Flag670_220:           "670_220",
	FlagMantleNormal:      "MANTLE_NORMAL",
	FlagOuterCoreNormal:   "OUTER_CORE_NORMAL",
	FlagInnerCoreNormal:   "INNER_CORE_NORMAL",
	FlagInCentralCube:     "IN_CENTRAL_CUBE",
	FlagBottomCentralCube: "BOTTOM_CENTRAL_CUBE",
	FlagTopCentralCube:    "TOP_CENTRAL_CUBE",
	FlagInFictitiousCube:  "IN_FICTITIOUS_CUBE",
}

func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Flag(%d)", f)
}

// Region returns the only region a flag may appear in, or 0 for an unknown flag.
func (f Flag) Region() Region {
	switch f {
	case FlagCrust, Flag220Moho, Flag670_220, FlagMantleNormal:
		return CrustMantle
	case FlagOuterCoreNormal:
		return OuterCore
	case FlagInnerCoreNormal, FlagInCentralCube, FlagBottomCentralCube,
		FlagTopCentralCube, FlagInFictitiousCube:
		return InnerCore
	}
	return 0
}

// AllFlags lists every legal flag in ascending order.
func AllFlags() []Flag {
	return []Flag{FlagCrust, Flag220Moho, Flag670_220, FlagMantleNormal,
		FlagOuterCoreNormal, FlagInnerCoreNormal, FlagInCentralCube,
		FlagBottomCentralCube, FlagTopCentralCube, FlagInFictitiousCube}
}

// ElementTag is the (region, flag) pair carried by every element. The fields
// are unexported so that only legal pairs can exist outside this package.
type ElementTag struct {
	region Region
	flag   Flag
}

func NewElementTag(r Region, f Flag) (ElementTag, error) {
	if want := f.Region(); want == 0 || want != r {
		return ElementTag{}, fmt.Errorf("flag %s is not valid in region %s", f, r)
	}
	return ElementTag{region: r, flag: f}, nil
}

// TagOf builds the tag for a flag, deriving the region.
func TagOf(f Flag) ElementTag {
	r := f.Region()
	if r == 0 {
		panic(fmt.Errorf("unknown element flag %d", f))
	}
	return ElementTag{region: r, flag: f}
}

func (t ElementTag) Region() Region { return t.region }
func (t ElementTag) Flag() Flag     { return t.flag }
func (t ElementTag) IsZero() bool   { return t.region == 0 }

func (t ElementTag) String() string {
	return fmt.Sprintf("%s/%s", t.region, t.flag)
}

// AttenuationRegion selects the attenuation model band for a radius.
type AttenuationRegion uint8

const (
	AttenuationInnerCore AttenuationRegion = iota + 1
	AttenuationCMB670
	Attenuation670_220
	Attenuation220_80
	Attenuation80Surface
)

func (a AttenuationRegion) String() string {
	switch a {
	case AttenuationInnerCore:
		return "INNER_CORE"
	case AttenuationCMB670:
		return "CMB_670"
	case Attenuation670_220:
		return "670_220"
	case Attenuation220_80:
		return "220_80"
	case Attenuation80Surface:
		return "80_SURFACE"
	}
	return fmt.Sprintf("AttenuationRegion(%d)", a)
}
