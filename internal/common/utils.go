package common

import "strconv"

// Placeholder is shown in place of a reading the service did not report.
const Placeholder = "N/A"

// FormatOptional renders v with the given number of decimals, or Placeholder
// when v is nil. Negative decimals use the shortest exact representation.
func FormatOptional(v *float64, decimals int) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}
