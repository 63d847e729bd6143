//go:build unix && !linux

package mmap

// MAP_POPULATE is Linux-only; the hint degrades to a no-op elsewhere.
const mapPopulate = 0
