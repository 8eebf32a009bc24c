// Package sysinfo reports host capabilities relevant to real-time audio:
// CPU vector extensions, core counts, memory and load.
package sysinfo

import (
	"context"
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/audiorouter/internal/logger"
)

// CPU describes the processor.
type CPU struct {
	BrandName     string   `json:"brand_name"`
	Vendor        string   `json:"vendor"`
	PhysicalCores int      `json:"physical_cores"`
	LogicalCores  int      `json:"logical_cores"`
	Features      []string `json:"features"`
	UsagePercent  float64  `json:"usage_percent"`
}

// Report is a host snapshot.
type Report struct {
	OS              string  `json:"os"`
	Arch            string  `json:"arch"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platform_version,omitempty"`
	KernelVersion   string  `json:"kernel_version,omitempty"`
	GoVersion       string  `json:"go_version"`
	GOMAXPROCS      int     `json:"gomaxprocs"`
	CPU             CPU     `json:"cpu"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryAvailable uint64  `json:"memory_available"`
	MemoryUsed      float64 `json:"memory_used_percent"`
}

// vectorFeatures are the extensions the DSP kernels can use.
var vectorFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE2, "sse2"},
	{cpuid.SSE4, "sse4.1"},
	{cpuid.AVX, "avx"},
	{cpuid.AVX2, "avx2"},
	{cpuid.FMA3, "fma3"},
	{cpuid.AVX512F, "avx512f"},
	{cpuid.ASIMD, "neon"},
}

// CPUInfo reads processor identification from cpuid.
func CPUInfo() CPU {
	c := CPU{
		BrandName:     cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		Features:      make([]string, 0, len(vectorFeatures)),
	}
	if c.LogicalCores == 0 {
		c.LogicalCores = runtime.NumCPU()
	}
	for _, f := range vectorFeatures {
		if cpuid.CPU.Supports(f.id) {
			c.Features = append(c.Features, f.name)
		}
	}
	return c
}

// Collect gathers a Report. Parts gopsutil cannot read on this platform are
// left zero and logged at debug level.
func Collect(ctx context.Context) Report {
	log := GetLogger()
	r := Report{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		GoVersion:  runtime.Version(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		CPU:        CPUInfo(),
	}

	if r.CPU.PhysicalCores == 0 {
		if n, err := cpu.CountsWithContext(ctx, false); err == nil {
			r.CPU.PhysicalCores = n
		}
	}
	if usage, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(usage) > 0 {
		r.CPU.UsagePercent = usage[0]
	} else if err != nil {
		log.Debug("cpu usage unavailable", logger.Error(err))
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		r.Platform = info.Platform
		r.PlatformVersion = info.PlatformVersion
		r.KernelVersion = info.KernelVersion
	} else {
		log.Debug("host info unavailable", logger.Error(err))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.MemoryTotal = vm.Total
		r.MemoryAvailable = vm.Available
		r.MemoryUsed = vm.UsedPercent
	} else {
		log.Debug("memory info unavailable", logger.Error(err))
	}

	return r
}

// HasVectorUnit reports whether the CPU has a SIMD unit the vector kernels
// accelerate with.
func (c CPU) HasVectorUnit() bool {
	return len(c.Features) > 0
}

// LogFields renders the report as structured log fields.
func (r Report) LogFields() []logger.Field {
	return []logger.Field{
		logger.String("os", r.OS),
		logger.String("arch", r.Arch),
		logger.String("platform", r.Platform),
		logger.String("cpu", r.CPU.BrandName),
		logger.Int("physical_cores", r.CPU.PhysicalCores),
		logger.Int("logical_cores", r.CPU.LogicalCores),
		logger.Any("vector_features", r.CPU.Features),
		logger.Uint64("memory_total", r.MemoryTotal),
		logger.Int("gomaxprocs", r.GOMAXPROCS),
	}
}

// GetLogger returns the sysinfo module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("sysinfo")
}
