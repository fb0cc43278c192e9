// Package backoff 退避算法测试
package backoff

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: ladder-optimizer, Property 9: Retry Backoff Bounds**

func TestBackoff_Bounds_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("无抖动时间隔单调不减且不超过上限", prop.ForAll(
		func(baseMs int, maxMs int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			b := New(base, max, 0)

			prev := time.Duration(0)
			for i := 0; i < 40; i++ {
				delay := b.Next()
				if delay < prev || delay > max {
					return false
				}
				prev = delay
			}
			return prev == max
		},
		gen.IntRange(100, 2000),
		gen.IntRange(5000, 60000),
	))

	properties.Property("抖动后间隔在 ±jitter 范围内", prop.ForAll(
		func(jitterPercent int, attempts int) bool {
			jitter := float64(jitterPercent) / 100.0
			b := New(time.Second, 30*time.Second, jitter)
			for i := 0; i < attempts; i++ {
				b.Next()
			}
			want := time.Second << attempts
			if want > 30*time.Second {
				want = 30 * time.Second
			}
			d := float64(b.Next())
			return d >= float64(want)*(1-jitter) && d <= float64(want)*(1+jitter)
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestBackoff_SpecificValues(t *testing.T) {
	b := New(time.Second, 30*time.Second, 0)
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // 32s 被截断
		30 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("attempt %d: got %v, want %v", i, got, w)
		}
	}
	if b.Attempt() != len(want) {
		t.Fatalf("Attempt=%d, want %d", b.Attempt(), len(want))
	}

	b.Reset()
	if b.Attempt() != 0 || b.Next() != time.Second {
		t.Fatalf("重置后应从基础值开始")
	}
}

func TestBackoff_NoOverflow(t *testing.T) {
	b := New(time.Second, time.Hour, 0)
	for i := 0; i < 100; i++ {
		if d := b.Next(); d <= 0 || d > time.Hour {
			t.Fatalf("attempt %d: delay=%v 越界", i, d)
		}
	}
}

func TestBackoff_DefaultConfig(t *testing.T) {
	b := NewDefault()
	if b.base != 2*time.Second || b.max != 60*time.Second || b.jitter != 0.2 {
		t.Fatalf("默认配置 base=%v max=%v jitter=%v", b.base, b.max, b.jitter)
	}
}
