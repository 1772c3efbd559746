package compile

import (
	"strings"

	"github.com/leapstack-labs/strata/pkg/semantic"
)

// granularitySeparator joins a dimension name and its grain suffix in a
// reference: "created_at__month".
const granularitySeparator = "__"

// splitGranularity splits a local dimension reference into base name and
// grain. An exact dimension-name match wins over suffix interpretation, so
// dimensions whose names contain "__" stay addressable. A suffix that is
// not a supported grain on a name that is not itself a dimension is an
// InvalidGranularityError.
func splitGranularity(m *semantic.Model, ref string) (string, semantic.Grain, error) {
	if _, ok := m.Dimension(ref); ok {
		return ref, "", nil
	}
	i := strings.LastIndex(ref, granularitySeparator)
	if i < 0 {
		return ref, "", nil
	}
	name := ref[:i]
	suffix := semantic.Grain(ref[i+len(granularitySeparator):])
	if !semantic.ValidGrain(suffix) {
		return "", "", &InvalidGranularityError{
			Ref:    m.Name + "." + ref,
			Reason: "unsupported granularity " + string(suffix),
		}
	}
	return name, suffix, nil
}
