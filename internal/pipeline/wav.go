package pipeline

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCMFormat describes the raw capture stream.
type PCMFormat struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// BytesPerSecond returns the stream's byte rate.
func (f PCMFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BytesPerSample
}

// frameBytes is the size of one sample across all channels.
func (f PCMFormat) frameBytes() int {
	return f.Channels * f.BytesPerSample
}

// decodeSamples converts little-endian signed PCM into go-audio samples.
func decodeSamples(pcm []byte, bytesPerSample int) ([]int, error) {
	if len(pcm)%bytesPerSample != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%bytesPerSample]
	}
	samples := make([]int, len(pcm)/bytesPerSample)
	switch bytesPerSample {
	case 2:
		for i := range samples {
			samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		}
	case 4:
		for i := range samples {
			samples[i] = int(int32(binary.LittleEndian.Uint32(pcm[i*4:])))
		}
	default:
		return nil, fmt.Errorf("unsupported sample width %d", bytesPerSample)
	}
	return samples, nil
}

// writeWAV encodes pcm as a WAV file at path and returns the encoded bytes.
func writeWAV(path string, pcm []byte, format PCMFormat) ([]byte, error) {
	samples, err := decodeSamples(pcm, format.BytesPerSample)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	bitDepth := format.BytesPerSample * 8
	enc := wav.NewEncoder(f, format.SampleRate, bitDepth, format.Channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}
	return os.ReadFile(path)
}
