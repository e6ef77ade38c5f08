package testsupport

import (
	"encoding/binary"
	"math"
)

// PCM returns little-endian signed 16-bit mono samples of a sine tone lasting
// samples frames. The content is irrelevant to transcription stubs but gives
// WAV encoders realistic non-zero input.
func PCM(samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000 * math.Sin(float64(i)/8))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}
