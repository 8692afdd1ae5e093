package indicator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueListen cueKind = iota + 1
	cueHeard
	cueComplete
	cueCancel
)

func (k cueKind) String() string {
	switch k {
	case cueListen:
		return "listen"
	case cueHeard:
		return "heard"
	case cueComplete:
		return "complete"
	case cueCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
)

type tone struct {
	hz     float64
	length time.Duration
	volume float64
}

var cuePCM = map[cueKind][]int16{
	cueListen: synthesizeCue(
		tone{hz: 880, length: 70 * time.Millisecond, volume: 0.18},
		tone{hz: 1175, length: 70 * time.Millisecond, volume: 0.18},
	),
	cueHeard: synthesizeCue(
		tone{hz: 660, length: 90 * time.Millisecond, volume: 0.16},
	),
	cueComplete: synthesizeCue(
		tone{hz: 740, length: 65 * time.Millisecond, volume: 0.18},
		tone{hz: 988, length: 65 * time.Millisecond, volume: 0.18},
		tone{hz: 1319, length: 110 * time.Millisecond, volume: 0.18},
	),
	cueCancel: synthesizeCue(
		tone{hz: 480, length: 75 * time.Millisecond, volume: 0.18},
		tone{hz: 360, length: 90 * time.Millisecond, volume: 0.18},
	),
}

func cueSamples(kind cueKind) []int16 {
	return cuePCM[kind]
}

// emitCue plays a synthesized cue on the default PulseAudio sink and blocks
// until it drains.
func emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("meddoc"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) || ctx.Err() != nil {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("meddoc "+kind.String()+" cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", kind, err)
	}
	return ctx.Err()
}

func synthesizeCue(parts ...tone) []int16 {
	gap := samplesForDuration(cueGap)
	var pcm []int16
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, synthesizeTone(part)...)
	}
	return pcm
}

// synthesizeTone renders a sine with a short linear ramp at both ends to
// avoid clicks.
func synthesizeTone(t tone) []int16 {
	n := samplesForDuration(t.length)
	if n <= 0 || t.hz <= 0 || t.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), cueSampleRate/200)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = min(envelope, float64(tail)/float64(ramp))
		}
		phase := 2 * math.Pi * t.hz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * t.volume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
