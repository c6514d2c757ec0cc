// Package signature implements discovery and publication of document
// signatures on the on-chain registry.
//
// A Session binds one document to one network. Engine.Discover walks the
// document's identifier chain in batches until a batch comes back short,
// and Publisher.Sign appends a record at the first unused identifier.
// Service ties both to a network registry and caches one provider per
// chain.
package signature
