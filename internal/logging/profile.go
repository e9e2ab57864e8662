package logging

import (
	"sync/atomic"
	"time"
)

// Counters accumulates per-phase event counts for the BEACH_PROFILE
// sink, in the spirit of vibetunnel's VIBETUNNEL_DEBUG. The host
// increments PTYBytesRead, DamageFlushes and TransportSends (the last
// once per subscriber tick that returns without error); nothing
// increments SnapshotChunks or DeltaBatches, so they are logged as zero.
type Counters struct {
	PTYBytesRead    atomic.Int64
	DamageFlushes   atomic.Int64
	SnapshotChunks  atomic.Int64
	DeltaBatches    atomic.Int64
	TransportSends  atomic.Int64
}

// StartProfiling logs Counters' values on interval until stop is closed.
// Callers only run this when ProfileEnabled reports true.
func StartProfiling(component string, c *Counters, interval time.Duration, stop <-chan struct{}) {
	logger := Component(component)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				logger.Info().
					Int64("pty_bytes_read", c.PTYBytesRead.Load()).
					Int64("damage_flushes", c.DamageFlushes.Load()).
					Int64("snapshot_chunks", c.SnapshotChunks.Load()).
					Int64("delta_batches", c.DeltaBatches.Load()).
					Int64("transport_sends", c.TransportSends.Load()).
					Msg("profile")
			}
		}
	}()
}
