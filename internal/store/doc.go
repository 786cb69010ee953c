// Package store holds the persistence collaborator for reports and
// per-turn transcriptions: typed records, a storage contract, and an
// in-memory implementation with ordered change subscriptions.
package store
