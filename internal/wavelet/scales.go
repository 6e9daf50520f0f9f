package wavelet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScaleSet is the ordered list of CWT scales (widths), fixed per session.
type ScaleSet []float64

// ParseScales accepts either a comma separated list ("1,2,4,8") or a
// half-open range "start:stop[:step]" ("1:31" is 1..30).
func ParseScales(s string) (ScaleSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("scales: empty")
	}

	var out ScaleSet
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("scales: invalid range %q", s)
		}
		nums := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("scales: invalid range %q: %w", s, err)
			}
			nums[i] = v
		}
		step := 1.0
		if len(nums) == 3 {
			step = nums[2]
		}
		if step <= 0 {
			return nil, fmt.Errorf("scales: step must be positive in %q", s)
		}
		n := int(math.Ceil((nums[1] - nums[0]) / step))
		for i := 0; i < n; i++ {
			out = append(out, nums[0]+float64(i)*step)
		}
	} else {
		for _, p := range strings.Split(s, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("scales: invalid value %q: %w", p, err)
			}
			out = append(out, v)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks that the set is non-empty and every scale is positive and finite.
func (s ScaleSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("scales: at least one scale is required")
	}
	for i, v := range s {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("scales: scale %d is %v, must be positive", i, v)
		}
	}
	return nil
}

func (s ScaleSet) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
