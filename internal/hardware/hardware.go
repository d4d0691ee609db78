package hardware

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Tier buckets the host into a performance class. Higher tiers can
// afford longer chunks, trading latency for transcription quality.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierUltra
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	case TierUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// ParseTier maps a config string to a Tier. Unknown values and "" report ok=false.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "low":
		return TierLow, true
	case "medium":
		return TierMedium, true
	case "high":
		return TierHigh, true
	case "ultra":
		return TierUltra, true
	default:
		return TierMedium, false
	}
}

// Profile describes the detected host hardware.
type Profile struct {
	CPUCores   int
	CPUMHz     float64
	MemoryGB   float64
	Tier       Tier
	ChunkSecs  float64
	MaxThreads int
}

var detectOnce = sync.OnceValue(detect)

// Detect probes the host once and caches the result for the process lifetime.
func Detect() Profile {
	return detectOnce()
}

func detect() Profile {
	cores := runtime.NumCPU()

	var mhz float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		mhz = infos[0].Mhz
	}

	var memGB float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memGB = float64(vm.Total) / (1024 * 1024 * 1024)
	}

	return ProfileFor(cores, mhz, memGB)
}

// ProfileFor computes the profile for explicit hardware numbers.
func ProfileFor(cores int, mhz, memGB float64) Profile {
	tier := tierFor(cores, mhz, memGB)
	return Profile{
		CPUCores:   cores,
		CPUMHz:     mhz,
		MemoryGB:   memGB,
		Tier:       tier,
		ChunkSecs:  tier.RecommendedChunkSeconds(),
		MaxThreads: maxThreadsFor(cores),
	}
}

func tierFor(cores int, mhz, memGB float64) Tier {
	score := 0

	switch {
	case cores >= 12:
		score += 3
	case cores >= 8:
		score += 2
	case cores >= 4:
		score += 1
	}

	switch {
	case mhz >= 3500:
		score += 2
	case mhz >= 2500:
		score += 1
	}

	switch {
	case memGB >= 32:
		score += 3
	case memGB >= 16:
		score += 2
	case memGB >= 8:
		score += 1
	}

	switch {
	case score >= 7:
		return TierUltra
	case score >= 5:
		return TierHigh
	case score >= 3:
		return TierMedium
	default:
		return TierLow
	}
}

func maxThreadsFor(cores int) int {
	threads := cores - 2
	if threads < 1 {
		threads = 1
	}
	if threads > 8 {
		threads = 8
	}
	return threads
}

// RecommendedChunkSeconds is the chunk duration the local engine performs
// best with on this tier.
func (t Tier) RecommendedChunkSeconds() float64 {
	switch t {
	case TierLow:
		return 10
	case TierMedium:
		return 15
	case TierHigh:
		return 20
	default:
		return 25
	}
}

// AccumulatorSettings are the per-tier chunk accumulation thresholds.
type AccumulatorSettings struct {
	MinDuration  time.Duration
	MaxDuration  time.Duration
	FlushTimeout time.Duration
}

// AccumulatorSettings returns the accumulation thresholds for the tier.
// Weaker machines flush smaller chunks to keep the engine from falling
// behind real time.
func (t Tier) AccumulatorSettings() AccumulatorSettings {
	switch t {
	case TierLow:
		return AccumulatorSettings{MinDuration: time.Second, MaxDuration: 10 * time.Second, FlushTimeout: time.Second}
	case TierMedium:
		return AccumulatorSettings{MinDuration: 1500 * time.Millisecond, MaxDuration: 15 * time.Second, FlushTimeout: time.Second}
	case TierHigh:
		return AccumulatorSettings{MinDuration: 2 * time.Second, MaxDuration: 20 * time.Second, FlushTimeout: time.Second}
	default:
		return AccumulatorSettings{MinDuration: 3 * time.Second, MaxDuration: 25 * time.Second, FlushTimeout: time.Second}
	}
}
