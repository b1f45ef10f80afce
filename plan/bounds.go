package plan

import (
	"slices"
	"strings"

	"github.com/arloliu/canon/typedef"
)

// BoundSet maps a generic parameter name to the capabilities a concrete
// argument must provide.
type BoundSet map[string]typedef.Capability

func (b BoundSet) add(param string, c typedef.Capability) {
	if c == typedef.CapNone {
		return
	}
	b[param] |= c
}

func (b BoundSet) merge(other BoundSet) {
	for param, c := range other {
		b.add(param, c)
	}
}

// Required returns the capabilities required of param.
func (b BoundSet) Required(param string) typedef.Capability {
	return b[param]
}

// Params returns the bounded parameter names in sorted order.
func (b BoundSet) Params() []string {
	out := make([]string, 0, len(b))
	for param := range b {
		out = append(out, param)
	}
	slices.Sort(out)

	return out
}

// String renders the set as "T: encode+decode, U: default".
func (b BoundSet) String() string {
	if len(b) == 0 {
		return "{}"
	}

	var sb strings.Builder
	for i, param := range b.Params() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(param)
		sb.WriteString(": ")
		sb.WriteString(b[param].String())
	}

	return sb.String()
}
