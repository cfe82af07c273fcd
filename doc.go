// Package rscache reads RuneScape-family on-disk asset caches.
//
// A cache is a directory containing one main data file
// (main_file_cache.dat2) and a set of index files
// (main_file_cache.idx0 .. idx254, plus the reference table at idx255).
// The data file is a flat array of fixed-size sectors; each index maps
// an archive id to the sector where its payload chain begins. Index
// 255, the reference table, additionally describes the CRC, version,
// and entry layout of every archive group stored under every other
// index.
//
// This package is read-only: it opens a cache, resolves
// (index, archive) pairs to byte payloads, decodes their compression
// and optional XTEA framing, and parses the reference table and
// multi-entry group payloads. It does not modify cache files.
package rscache
