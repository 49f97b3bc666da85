//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
	"github.com/sirupsen/logrus"
)

// countInstructions runs f and logs the instructions retired by the calling
// thread. A host without perf events access still runs f.
func countInstructions(f func() error, log logrus.FieldLogger) (err error) {
	var (
		ran bool
	)
	pv, perr := perf.CPUInstructions(func() error {
		ran = true
		err = f()
		return err
	})
	if !ran {
		log.WithError(perr).Warn("perf events unavailable, running without instruction counts")
		return f()
	}
	if err != nil {
		return
	}
	if perr != nil {
		log.WithError(perr).Warn("reading instruction count")
		return
	}
	log.WithFields(logrus.Fields{
		"instructions": pv.Value,
		"timeEnabled":  pv.TimeEnabled,
		"timeRunning":  pv.TimeRunning,
	}).Info("solve instruction count")
	return
}
