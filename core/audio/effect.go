package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// EffectKind 效果类型
type EffectKind string

const (
	FadeIn  EffectKind = "fade_in"
	FadeOut EffectKind = "fade_out"
)

// ParseEffectKind maps a wire name onto an EffectKind.
func ParseEffectKind(name string) (EffectKind, error) {
	switch EffectKind(name) {
	case FadeIn, FadeOut:
		return EffectKind(name), nil
	default:
		return "", fmt.Errorf("unknown effect %q", name)
	}
}

// Effect 效果链中的一项
type Effect struct {
	Kind     EffectKind
	Duration time.Duration
}

// Name is the display name reported in status snapshots.
func (e Effect) Name() string {
	switch e.Kind {
	case FadeIn:
		return "FadeIn"
	case FadeOut:
		return "FadeOut"
	default:
		return string(e.Kind)
	}
}

// wrap applies the effect to a decoded stream of total samples at rate sr.
// FadeOut needs the stream length; when it is unknown the stream is returned
// unchanged.
func (e Effect) wrap(s beep.Streamer, sr beep.SampleRate, total int) beep.Streamer {
	n := sr.N(e.Duration)
	if n <= 0 {
		return s
	}
	switch e.Kind {
	case FadeIn:
		return effects.Transition(s, n, 0, 1, effects.TransitionEqualPower)
	case FadeOut:
		if total <= 0 {
			return s
		}
		start := total - n
		if start < 0 {
			start, n = 0, total
		}
		return beep.Seq(beep.Take(start, s), effects.Transition(s, n, 1, 0, effects.TransitionEqualPower))
	default:
		return s
	}
}

// applyEffects wraps s with every effect of the chain, in order.
func applyEffects(s beep.Streamer, chain []Effect, sr beep.SampleRate, total int) beep.Streamer {
	for _, e := range chain {
		s = e.wrap(s, sr, total)
	}
	return s
}

// EffectNames lists the chain in order.
func EffectNames(chain []Effect) []string {
	names := make([]string, 0, len(chain))
	for _, e := range chain {
		names = append(names, e.Name())
	}
	return names
}
