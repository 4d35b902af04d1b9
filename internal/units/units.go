// Package units provides shared constants and validation for display units.
// The database stores depths in metres and vertical speeds in metres per
// second; conversion happens at the presentation edge.
package units

// Unit system constants
const (
	Metric   = "metric"
	Imperial = "imperial"
)

// ValidSystems contains all valid unit system values
var ValidSystems = []string{Metric, Imperial}

// IsValid checks if the given unit system is in the list of valid systems
func IsValid(system string) bool {
	for _, valid := range ValidSystems {
		if system == valid {
			return true
		}
	}
	return false
}

// GetValidSystemsString returns a comma-separated string of valid systems for error messages
func GetValidSystemsString() string {
	return "metric, imperial"
}

const feetPerMetre = 3.28084

// ConvertDepth converts a depth in metres to the target unit system.
func ConvertDepth(metres float64, system string) float64 {
	switch system {
	case Imperial:
		return metres * feetPerMetre
	default:
		return metres
	}
}

// ConvertSpeed converts a vertical speed in m/s to the target unit system
// (ft/s for imperial).
func ConvertSpeed(speedMPS float64, system string) float64 {
	switch system {
	case Imperial:
		return speedMPS * feetPerMetre
	default:
		return speedMPS
	}
}

// DepthLabel returns the axis label for depths in the target system.
func DepthLabel(system string) string {
	if system == Imperial {
		return "ft"
	}
	return "m"
}
