package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
)

// MakeWAV builds a 16-bit PCM WAV of silence.
func MakeWAV(sampleRate, channels, frames int) []byte {
	return buildWAV(sampleRate, channels, make([]int16, frames*channels))
}

// ToneWAV builds a 16-bit PCM WAV holding a 440 Hz sine on every channel.
func ToneWAV(sampleRate, channels, frames int) []byte {
	pcm := make([]int16, frames*channels)
	for i := range frames {
		v := int16(0.25 * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for c := range channels {
			pcm[i*channels+c] = v
		}
	}
	return buildWAV(sampleRate, channels, pcm)
}

func buildWAV(sampleRate, channels int, pcm []int16) []byte {
	blockAlign := channels * 2
	dataSize := len(pcm) * 2

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}
