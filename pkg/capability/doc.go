// Package capability defines the cross-cutting contracts a feat
// descriptor composes around its raw accessors: instance-scoped
// locking, value caching, change notification, and call statistics.
//
// The descriptor depends only on the interfaces here. Default
// implementations are provided for all of them; a Prometheus-backed
// Stats sink is available for applications that scrape metrics.
//
// Scopes identify one cached/observed/recorded value: the owning
// instance, the attribute name, and (for indexed attributes) the key.
// Locking deliberately ignores the attribute and key parts — distinct
// attributes of one instance share the instance lock because the
// underlying device channel is usually not safely interleavable.
package capability
