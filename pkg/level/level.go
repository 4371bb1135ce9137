// Package level reduces a spectral magnitude buffer to one volume value
// and decides whether it counts as a blow.
package level

// DefaultThreshold is the blow sensitivity on the 0-255 byte scale.
const DefaultThreshold = 40.0

// Sample is a single volume reading for one microphone frame.
type Sample struct {
	Volume float64 `json:"volume"`
}

// Level returns the arithmetic mean of buf. An empty buffer is silent.
func Level(buf []uint8) float64 {
	if len(buf) == 0 {
		return 0
	}
	sum := 0
	for _, b := range buf {
		sum += int(b)
	}
	return float64(sum) / float64(len(buf))
}

// Monitor classifies volumes against a fixed threshold.
type Monitor struct {
	Threshold float64
}

// NewMonitor returns a monitor using threshold, or DefaultThreshold
// when threshold is not positive.
func NewMonitor(threshold float64) Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Monitor{Threshold: threshold}
}

// IsLoud reports whether volume is strictly above the threshold.
func (m Monitor) IsLoud(volume float64) bool {
	return volume > m.Threshold
}

// Measure averages buf and classifies the result.
func (m Monitor) Measure(buf []uint8) (Sample, bool) {
	s := Sample{Volume: Level(buf)}
	return s, m.IsLoud(s.Volume)
}
