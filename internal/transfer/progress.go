// SPDX-License-Identifier: MPL-2.0

package transfer

import "time"

// kbitPerByteMs converts bytes per millisecond to kBit/s (1000 * 8 / 1024).
const kbitPerByteMs = 7.8125

type (
	// State is the bookkeeping of one download attempt.
	State struct {
		BytesTransferred uint64
		TotalBytes       uint64
		StartedAt        time.Time
		// BaselineBytes were already on disk when the attempt started and are
		// excluded from throughput.
		BaselineBytes uint64
	}

	// Progress is reported after the size probe and after every chunk.
	Progress struct {
		BytesTransferred uint64
		TotalBytes       uint64
		BaselineBytes    uint64
		BytesPerSecond   float64
		ETA              time.Duration
		ETAKnown         bool
	}
)

// Progress derives throughput and remaining time at now.
//
// Throughput counts only bytes fetched during this attempt. With no elapsed
// time or no new bytes the rate is zero and the ETA is unknown.
func (s State) Progress(now time.Time) Progress {
	p := Progress{
		BytesTransferred: s.BytesTransferred,
		TotalBytes:       s.TotalBytes,
		BaselineBytes:    s.BaselineBytes,
	}

	elapsedMs := float64(now.Sub(s.StartedAt)) / float64(time.Millisecond)
	if elapsedMs <= 0 || s.BytesTransferred <= s.BaselineBytes {
		return p
	}

	fresh := s.BytesTransferred - s.BaselineBytes
	perMs := float64(fresh) / elapsedMs
	p.BytesPerSecond = perMs * 1000

	remaining := float64(s.TotalBytes) - float64(fresh)
	if remaining < 0 {
		remaining = 0
	}
	p.ETA = time.Duration(remaining / perMs * float64(time.Millisecond))
	p.ETAKnown = true
	return p
}

// Fraction returns completion in [0, 1]; zero when the total is unknown.
func (p Progress) Fraction() float64 {
	if p.TotalBytes == 0 {
		return 0
	}
	return float64(p.BytesTransferred) / float64(p.TotalBytes)
}

// KBitPerSecond returns the throughput in kBit/s.
func (p Progress) KBitPerSecond() float64 {
	return p.BytesPerSecond / 1000 * kbitPerByteMs
}

// Done reports whether every byte has arrived.
func (p Progress) Done() bool {
	return p.TotalBytes > 0 && p.BytesTransferred >= p.TotalBytes
}
