// Package cache provides the bounded least-recently-used cache that keeps
// probe results between scans.
//
//	probes, err := cache.New[string, probe.Entry]("probe", 1000)
//	probes.Put(path, entry)
//	entry, ok := probes.Get(path)
//
// Size never exceeds the configured capacity. Hits, misses, evictions and
// the entry count are exported as Prometheus metrics labelled with the
// cache name.
package cache
