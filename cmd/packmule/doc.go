// Command packmule resolves the identity of macOS installer artifacts and
// publishes them to a remote software catalog.
//
// The publish command drives the full pipeline: container detection,
// expansion in a scratch workspace, metadata extraction, catalog matching,
// and upload. The inspect command runs the identity pipeline alone, and the
// catalog and history commands report on the remote catalog and the local
// publish ledger.
package main
