package filedb

import "sync/atomic"

type ExportStat struct {
	NodeReads   uint64
	NodeWrites  uint64
	ShortReads  uint64
	Splits      uint64
	RootChanges uint64
	BytesWrite  uint64
}

type iStat struct {
	nodeReads   atomic.Uint64
	nodeWrites  atomic.Uint64
	shortReads  atomic.Uint64
	splits      atomic.Uint64
	rootChanges atomic.Uint64
	bytesWrite  atomic.Uint64
}

func (s *iStat) export() ExportStat {
	return ExportStat{
		NodeReads:   s.nodeReads.Load(),
		NodeWrites:  s.nodeWrites.Load(),
		ShortReads:  s.shortReads.Load(),
		Splits:      s.splits.Load(),
		RootChanges: s.rootChanges.Load(),
		BytesWrite:  s.bytesWrite.Load(),
	}
}
