// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package router

import (
	"fmt"
	"time"
)

// TriggerKind selects the scalogram recompute cadence.
type TriggerKind int

const (
	// EverySamples fires after every N accepted samples.
	EverySamples TriggerKind = iota
	// EverySeconds fires once T seconds of session time have elapsed since the last firing.
	EverySeconds
)

func (k TriggerKind) String() string {
	switch k {
	case EverySamples:
		return "samples"
	case EverySeconds:
		return "seconds"
	default:
		return "unknown"
	}
}

// Trigger is the cadence policy evaluated after each accepted sample.
// Exactly one policy is active per session.
type Trigger struct {
	Kind     TriggerKind
	Samples  uint64
	Interval time.Duration
}

// EveryNSamples returns a sample-count trigger.
func EveryNSamples(n uint64) Trigger {
	return Trigger{Kind: EverySamples, Samples: n}
}

// EveryTSeconds returns a session-time trigger.
func EveryTSeconds(d time.Duration) Trigger {
	return Trigger{Kind: EverySeconds, Interval: d}
}

// Validate checks the policy parameters.
func (t Trigger) Validate() error {
	switch t.Kind {
	case EverySamples:
		if t.Samples == 0 {
			return fmt.Errorf("trigger: every-N-samples needs N > 0")
		}
	case EverySeconds:
		if t.Interval <= 0 {
			return fmt.Errorf("trigger: every-T-seconds needs T > 0")
		}
	default:
		return fmt.Errorf("trigger: unknown kind %d", t.Kind)
	}
	return nil
}

func (t Trigger) String() string {
	if t.Kind == EverySeconds {
		return fmt.Sprintf("every %s", t.Interval)
	}
	return fmt.Sprintf("every %d samples", t.Samples)
}

// cadence holds the mutable state of a Trigger.
type cadence struct {
	policy   Trigger
	anchored bool
	last     float64
}

// due is called once per accepted sample with the new sample count and the
// sample's session time.
func (c *cadence) due(count uint64, at float64) bool {
	switch c.policy.Kind {
	case EverySamples:
		return count%c.policy.Samples == 0
	case EverySeconds:
		if !c.anchored {
			c.anchored = true
			c.last = at
			return false
		}
		if at-c.last >= c.policy.Interval.Seconds() {
			c.last = at
			return true
		}
	}
	return false
}
