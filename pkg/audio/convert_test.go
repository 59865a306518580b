package audio_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/intervox/pkg/audio"
)

func TestSamplesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	if got := audio.Samples(audio.PCM(in)); !slices.Equal(got, in) {
		t.Fatalf("Samples(PCM(x)) = %v, want %v", got, in)
	}
	if got := audio.Samples([]byte{1, 0, 7}); len(got) != 1 || got[0] != 1 {
		t.Errorf("odd trailing byte: %v", got)
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{"mono passthrough", []int16{5, 6, 7}, 1, []int16{5, 6, 7}},
		{"stereo", []int16{100, 200, -100, -200}, 2, []int16{150, -150}},
		{"stereo at full scale", []int16{32767, 32767, -32768, -32768}, 2, []int16{32767, -32768}},
		{"three channels", []int16{3, 6, 9, 0, 0, 30}, 3, []int16{6, 10}},
		{"partial frame dropped", []int16{10, 20, 30}, 2, []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.Samples(audio.Downmix(audio.PCM(tt.in), tt.channels))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Downmix = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResampleMono16(t *testing.T) {
	t.Run("same rate", func(t *testing.T) {
		pcm := audio.PCM([]int16{100, 200, 300})
		if out := audio.ResampleMono16(pcm, 48000, 48000); len(out) != len(pcm) {
			t.Fatalf("len = %d, want %d", len(out), len(pcm))
		}
	})
	t.Run("invalid rate", func(t *testing.T) {
		pcm := audio.PCM([]int16{1, 2, 3})
		if out := audio.ResampleMono16(pcm, 0, 16000); len(out) != len(pcm) {
			t.Fatal("zero source rate should return input unchanged")
		}
	})
	t.Run("upsample", func(t *testing.T) {
		got := audio.Samples(audio.ResampleMono16(audio.PCM([]int16{1000, 2000}), 16000, 48000))
		if len(got) != 6 {
			t.Fatalf("got %d samples, want 6", len(got))
		}
		if got[0] != 1000 {
			t.Errorf("first sample = %d, want 1000", got[0])
		}
		if got[2] <= got[1] || got[1] <= got[0] {
			t.Errorf("ramp not monotonic: %v", got)
		}
		if last := got[5]; last < 1800 || last > 2200 {
			t.Errorf("last sample = %d, want close to 2000", last)
		}
	})
	t.Run("downsample", func(t *testing.T) {
		got := audio.Samples(audio.ResampleMono16(audio.PCM([]int16{100, 200, 300, 400, 500, 600}), 48000, 16000))
		if !slices.Equal(got, []int16{100, 400}) {
			t.Fatalf("got %v, want [100 400]", got)
		}
	})
}

func TestToMono16k(t *testing.T) {
	// 4 stereo frames at 32 kHz become 2 mono samples at 16 kHz.
	stereo := audio.PCM([]int16{100, 300, 100, 300, 100, 300, 100, 300})
	got := audio.Samples(audio.ToMono16k(stereo, 32000, 2))
	if !slices.Equal(got, []int16{200, 200}) {
		t.Fatalf("got %v, want [200 200]", got)
	}
}

func TestPCMToFloat32(t *testing.T) {
	got := audio.PCMToFloat32(audio.PCM([]int16{0, 16384, -32768}))
	if !slices.Equal(got, []float32{0, 0.5, -1}) {
		t.Errorf("got %v", got)
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS(audio.PCM([]int16{1000, -1000, 1000, -1000})); got != 1000 {
		t.Errorf("RMS = %v, want 1000", got)
	}
}
