package types

import (
	"fmt"
	"strings"
)

// NormType selects the vector norm applied to the change in cell temperature
// between successive Picard iterates.
type NormType uint8

const (
	NormLinf NormType = iota
	NormL1
	NormL2
)

var NormNameMap = map[string]NormType{
	"linf": NormLinf,
	"inf":  NormLinf,
	"l1":   NormL1,
	"l2":   NormL2,
}

func NewNormType(label string) (nt NormType, err error) {
	var (
		ok bool
	)
	if nt, ok = NormNameMap[strings.ToLower(label)]; !ok {
		err = fmt.Errorf("unknown convergence norm [%s]", label)
	}
	return
}

func (nt NormType) String() string {
	switch nt {
	case NormL1:
		return "L1"
	case NormL2:
		return "L2"
	default:
		return "Linf"
	}
}

// ICSource selects which side seeds the shared temperature and density state
// ahead of the first Picard iteration.
type ICSource uint8

const (
	ICHeatFluids ICSource = iota
	ICNeutronics
)

var ICNameMap = map[string]ICSource{
	"heatfluids": ICHeatFluids,
	"neutronics": ICNeutronics,
}

func NewICSource(label string) (ic ICSource, err error) {
	var (
		ok bool
	)
	if ic, ok = ICNameMap[strings.ToLower(label)]; !ok {
		err = fmt.Errorf("unknown initial condition source [%s]", label)
	}
	return
}

func (ic ICSource) String() string {
	if ic == ICNeutronics {
		return "neutronics"
	}
	return "heatfluids"
}

// OutputMode gates which Picard iterations produce solution output.
type OutputMode uint8

const (
	OutputNone OutputMode = iota
	OutputFinal
	OutputAll
)

var OutputNameMap = map[string]OutputMode{
	"none":  OutputNone,
	"final": OutputFinal,
	"all":   OutputAll,
}

func NewOutputMode(label string) (om OutputMode, err error) {
	var (
		ok bool
	)
	if om, ok = OutputNameMap[strings.ToLower(label)]; !ok {
		err = fmt.Errorf("unknown output mode [%s]", label)
	}
	return
}

func (om OutputMode) String() string {
	switch om {
	case OutputFinal:
		return "final"
	case OutputAll:
		return "all"
	default:
		return "none"
	}
}
