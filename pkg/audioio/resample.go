package audioio

// Resample converts mono audio between sample rates by linear interpolation.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	n := len(samples) * toRate / fromRate
	out := make([]int16, n)

	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(samples[idx]), float64(samples[idx+1])
		out[i] = int16(a + frac*(b-a))
	}
	return out
}

// BytesToSamples converts little-endian PCM16 bytes to samples. A trailing
// odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts samples to little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// Float32 converts samples to the [-1, 1) range used by the analyser.
func Float32(samples []int16, dst []float32) []float32 {
	dst = dst[:0]
	for _, s := range samples {
		dst = append(dst, float32(s)/32768)
	}
	return dst
}
