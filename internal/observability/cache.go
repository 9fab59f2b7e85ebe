package observability

import "strings"

// CacheObserver feeds result cache events into Metrics. It implements
// cache.Observer.
type CacheObserver struct {
	m *Metrics
}

func (m *Metrics) CacheObserver() *CacheObserver {
	return &CacheObserver{m: m}
}

func (o *CacheObserver) CacheHit(key string) {
	o.m.CacheEvents.WithLabelValues(namespaceOf(key), "hit").Inc()
}

func (o *CacheObserver) CacheMiss(key string, expired bool) {
	event := "miss"
	if expired {
		event = "expired"
	}
	o.m.CacheEvents.WithLabelValues(namespaceOf(key), event).Inc()
}

func (o *CacheObserver) CacheSweep(removed, remaining int) {
	o.m.CacheEvents.WithLabelValues("all", "swept").Add(float64(removed))
	o.m.CacheEntries.Set(float64(remaining))
}

// namespaceOf keeps label cardinality bounded: only the key prefix is used.
func namespaceOf(key string) string {
	ns, _, ok := strings.Cut(key, ":")
	if !ok || ns == "" {
		return "other"
	}
	return ns
}
