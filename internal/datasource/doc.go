// Package datasource is the backend collaborator of the credential cache:
// it fetches the five resource collections for a namespace scope and
// persists binding mutations, returning only server-authoritative records.
//
// Failures fall into two kinds: TransportError (the backend was unreachable
// or rejected the call) and ValidationError (the response had a malformed
// shape). The cache core treats both identically and never inspects them.
package datasource
