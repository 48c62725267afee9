package resolver

// CachingMode is the per-render caching behavior bitset:
// whether a Load may read an existing Cache entry, may store a freshly
// parsed one, and whether a read entry is revalidated against its
// Source's timestamp before being trusted.
type CachingMode uint8

const (
	// CachingRead permits Load to satisfy a request from an existing
	// Cache entry instead of re-parsing.
	CachingRead CachingMode = 1 << iota

	// CachingStore permits Load to insert a freshly parsed AST into the
	// Cache for later reads.
	CachingStore

	// CachingAutoUpdate, combined with CachingRead, revalidates a cache
	// hit against its Source's Timestamp (throttled by a polling
	// frequency) before trusting it.
	CachingAutoUpdate

	// CachingBypass ignores CachingRead/CachingStore/CachingAutoUpdate
	// entirely: every Load re-parses and nothing touches the Cache.
	CachingBypass
)

// CachingDefault reads from and stores into the Cache, without
// revalidating against the Source.
const CachingDefault = CachingRead | CachingStore

// normalize maps the zero value to CachingDefault, so a caller's
// unset Options.Caching behaves like "default" mode rather
// than bypassing the cache outright.
func (m CachingMode) normalize() CachingMode {
	if m == 0 {
		return CachingDefault
	}
	return m
}
