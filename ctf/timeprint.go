// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"fmt"
	"time"
)

// ClockOpts configures how an Event's raw tick count is turned into a
// human time by FormatTimestamp, as a plain struct rather than package
// globals.
type ClockOpts struct {
	// FreqHz overrides the trace's declared clock frequency; zero
	// means use the trace's Clock.FreqHz, falling back to 1e9 (assume
	// nanosecond ticks) if the trace declares no clock at all.
	FreqHz uint64

	// Offset overrides the trace's declared clock offset in ticks.
	Offset int64

	// Relative is not consulted by FormatTimestamp: its output is
	// always the tick count plus offset, rendered as seconds.
	Relative bool
}

// resolved returns the frequency and offset FormatTimestamp should use:
// o's overrides if set, else the trace's declared clock, else sane
// defaults.
func (o ClockOpts) resolved(tr *Trace) (freqHz uint64, offset int64) {
	freqHz, offset = 1e9, 0
	if tr.Clock != nil {
		freqHz, offset = tr.Clock.FreqHz, tr.Clock.Offset
	}
	if o.FreqHz != 0 {
		freqHz = o.FreqHz
	}
	if o.Offset != 0 {
		offset = o.Offset
	}
	if freqHz == 0 {
		freqHz = 1e9
	}
	return freqHz, offset
}

// FormatTimestamp renders an event's raw tick count as "SSSSS.NNNNNNNNN"
// seconds, the convention CTF trace viewers use, honoring opts'
// frequency/offset overrides.
func FormatTimestamp(tr *Trace, ticks uint64, opts ClockOpts) string {
	freqHz, offset := opts.resolved(tr)
	total := int64(ticks) + offset
	d := ticksToDuration(total, freqHz)
	sec := int64(d / time.Second)
	nsec := int64(d % time.Second)
	if nsec < 0 {
		nsec = -nsec
	}
	return fmt.Sprintf("%d.%09d", sec, nsec)
}

func ticksToDuration(ticks int64, freqHz uint64) time.Duration {
	if freqHz == 0 {
		return time.Duration(ticks)
	}
	f := int64(freqHz)
	sec, rem := ticks/f, ticks%f
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/time.Duration(f)
}
