package config

import (
	"log"

	"github.com/shirou/gopsutil/v4/cpu"
)

// defaultServerThread sizes the per-server worker count from the host.
func defaultServerThread() uint64 {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		log.Printf("[WARN] could not read logical cpu count (%v), using 1 server thread", err)
		return 1
	}
	return uint64(n)
}
