// Package profiling wires the standard library's pprof helpers into a
// service's startup/shutdown sequence.
package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

// Start enables CPU and/or heap profiling for whichever of cpuProfile,
// memProfile is non-empty, and returns a single function the caller should
// defer to flush and close both profiles on exit.
func Start(cpuProfile, memProfile string) func() {
	var stops []func()

	if cpuProfile != "" {
		stops = append(stops, InitCPUProfiling(cpuProfile))
	}

	if memProfile != "" {
		stops = append(stops, InitMemoryProfiling(memProfile))
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// InitCPUProfiling starts writing a CPU profile to cpuProfile and returns a
// function to stop profiling.
func InitCPUProfiling(cpuProfile string) func() {
	logrus.Info("initializing CPU profiling")

	file, err := os.Create(cpuProfile)
	if err != nil {
		logrus.WithError(err).Fatal("could not create CPU profile")
	}

	if err := pprof.StartCPUProfile(file); err != nil {
		logrus.WithError(err).Fatal("could not start CPU profile")
	}

	return func() {
		pprof.StopCPUProfile()

		if err := file.Close(); err != nil {
			logrus.WithError(err).Fatal("could not close CPU profile")
		}
	}
}

// InitMemoryProfiling returns a function that, when called, forces a GC and
// writes a heap profile to memProfile.
func InitMemoryProfiling(memProfile string) func() {
	logrus.Info("initializing memory profiling")

	return func() {
		file, err := os.Create(memProfile)
		if err != nil {
			logrus.WithError(err).Fatal("could not create memory profile")
		}

		runtime.GC()

		if err := pprof.WriteHeapProfile(file); err != nil {
			logrus.WithError(err).Fatal("could not write memory profile")
		}

		if err = file.Close(); err != nil {
			logrus.WithError(err).Fatal("could not close memory profile")
		}
	}
}
