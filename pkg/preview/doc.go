// Package preview manages the transient, process local resources that back
// the "shareable" preview link of the embed view. A handle is only valid for
// as long as the process that issued it keeps it alive; it is not a durable
// link. Manager guarantees at most one live handle per owner and releases the
// previous one whenever the content changes.
package preview
