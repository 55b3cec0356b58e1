package audio

// Int16ToBytes encodes samples as little-endian int16 PCM into a new slice.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// BytesToInt16 decodes little-endian int16 PCM into dst and returns the number
// of samples written. A trailing odd byte is ignored.
func BytesToInt16(dst []int16, pcm []byte) int {
	n := min(len(dst), len(pcm)/2)
	for i := range n {
		dst[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return n
}

// BytesToInts decodes little-endian int16 PCM into a widened int slice, the
// sample representation used by integer PCM buffers.
func BytesToInts(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}
	return out
}
