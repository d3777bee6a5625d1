package api

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var processStart = time.Now()

// metricsHandler serves a few process gauges in the Prometheus text format.
func (a *Api) metricsHandler(w http.ResponseWriter, r *http.Request) {
	b := &bytes.Buffer{}
	writeGauge(b, "up", "1 if the service is up.", 1)
	writeGauge(b, "process_start_time_seconds", "Start time of the process since unix epoch in seconds.", processStart.Unix())
	writeGauge(b, "process_resident_memory_bytes", "Resident memory size in bytes.", residentMemory())

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if _, err := w.Write(b.Bytes()); err != nil {
		a.logError(r, err)
	}
}

func writeGauge(b *bytes.Buffer, name, help string, v int64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

// residentMemory reads the resident set from /proc, memory obtained by the Go
// runtime elsewhere.
func residentMemory() int64 {
	if statm, err := os.ReadFile("/proc/self/statm"); err == nil {
		if fields := strings.Fields(string(statm)); len(fields) > 1 {
			if pages, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				return pages * int64(os.Getpagesize())
			}
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Sys)
}
