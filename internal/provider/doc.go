// Package provider adapts heterogeneous chain backends to the two calls the
// signature protocol needs: query registry events by identifier and publish
// one registration transaction.
//
// Three variants exist. The wallet variant forwards EIP-1193 requests to an
// injected Wallet. The rpc variant talks to a node through go-ethereum's
// ethclient. The ankr variant reads through the Ankr multichain aggregator
// and delegates writes to another provider.
//
// Variants are registered by network.Kind and built with Open.
package provider
