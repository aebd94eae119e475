package bufferpool

import (
	"IndexDB/storage_engine/page"
	"sort"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

/*
This file holds helper functions for the bufferpool
*/

// GetStats returns current buffer pool statistics
func (bp *BufferPool) GetStats() BufferPoolStats {
	bp.mu.Lock()
	stats := BufferPoolStats{
		FramePages: len(bp.frames),
		Capacity:   bp.capacity,
	}
	for _, f := range bp.frames {
		if f.dirty {
			stats.DirtyPages++
		}
	}
	bp.mu.Unlock()

	stats.Hits = bp.hits.Load()
	stats.Misses = bp.misses.Load()
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if m := bp.clean.Metrics; m != nil {
		stats.CachedPages = int64(m.KeysAdded() - m.KeysEvicted())
	}
	return stats
}

// LogStats writes the current statistics at info level.
func (bp *BufferPool) LogStats() {
	s := bp.GetStats()
	bp.log.Info("buffer pool stats",
		zap.Int("frames", s.FramePages),
		zap.Int("dirty", s.DirtyPages),
		zap.String("frame_bytes", humanize.IBytes(uint64(s.FramePages)*page.PageSize)),
		zap.String("capacity_bytes", humanize.IBytes(uint64(s.Capacity)*page.PageSize)),
		zap.Uint64("hits", s.Hits),
		zap.Uint64("misses", s.Misses),
		zap.Float64("hit_rate", s.HitRate),
	)
}

// DirtyPages lists the pages tid has marked dirty, ordered by id.
func (bp *BufferPool) DirtyPages(tid uint64) []page.PageID {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var out []page.PageID
	for pid := range bp.txnFrames[tid] {
		if f := bp.frames[pid]; f != nil && f.dirty {
			out = append(out, pid)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TableID != out[j].TableID {
			return out[i].TableID < out[j].TableID
		}
		return out[i].PageNumber < out[j].PageNumber
	})
	return out
}

// Capacity returns the maximum number of committed pages kept in memory
func (bp *BufferPool) Capacity() int {
	return bp.capacity
}
