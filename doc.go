// Package cfb reads Microsoft Compound File Binary (CFB/OLE) containers:
// the transport format of legacy Office documents, AAF files, and MSI
// packages. A container is a miniature FAT filesystem in a single file;
// this package exposes its directory of storages and streams and lets any
// stream be read as an independent, seekable byte sequence.
//
// Opening is permissive by default: recoverable anomalies (odd sector
// sizes, truncated DIFATs, sort-order violations) are reported through a
// Sink and reading continues, while structural corruption (cycles,
// out-of-range sectors, a missing Root Entry) aborts the open. Any warning
// category can be escalated with WithPromoted or WithStrict.
//
// The package is read-only and does no interpretation of stream contents.
package cfb
