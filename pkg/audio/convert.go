// Package audio holds the small amount of audio handling Intervox needs:
// recognising uploaded clip formats, reading and writing WAV containers, and
// normalising 16-bit PCM for speech-to-text engines.
//
// PCM buffers are always little-endian signed 16-bit, interleaved when they
// carry more than one channel.
package audio

import (
	"encoding/binary"
	"math"
)

// WhisperRate is the sample rate whisper-family recognisers expect.
const WhisperRate = 16000

// Samples decodes a PCM buffer. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// PCM encodes samples into a PCM buffer.
func PCM(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Downmix averages the channels of every frame into one mono sample.
// Incomplete trailing frames are dropped. Mono input is returned as is.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	in := Samples(pcm)
	out := make([]int16, len(in)/channels)
	for f := range out {
		var sum int32
		for _, s := range in[f*channels : (f+1)*channels] {
			sum += int32(s)
		}
		out[f] = int16(sum / int32(channels))
	}
	return PCM(out)
}

// ResampleMono16 converts mono PCM from one sample rate to another by linear
// interpolation. Matching or invalid rates return pcm unchanged.
func ResampleMono16(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to || len(pcm) < 2 {
		return pcm
	}
	in := Samples(pcm)
	n := int(int64(len(in)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}

	step := float64(from) / float64(to)
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		a := float64(in[j])
		b := a
		if j+1 < len(in) {
			b = float64(in[j+1])
		}
		frac := pos - float64(j)
		out[i] = int16(a + (b-a)*frac)
	}
	return PCM(out)
}

// ToMono16k prepares PCM of any layout for whisper: mono at [WhisperRate].
func ToMono16k(pcm []byte, sampleRate, channels int) []byte {
	return ResampleMono16(Downmix(pcm, channels), sampleRate, WhisperRate)
}

// PCMToFloat32 scales mono PCM to float32 samples in [-1, 1).
func PCMToFloat32(pcm []byte) []float32 {
	in := Samples(pcm)
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768
	}
	return out
}

// RMS is the root-mean-square amplitude of pcm. Silence from a typical
// browser microphone stays well below 100.
func RMS(pcm []byte) float64 {
	in := Samples(pcm)
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, s := range in {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(in)))
}
