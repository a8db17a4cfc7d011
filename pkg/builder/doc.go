// Package builder drives the lifecycle of the external visual form editor.
//
// A Session attaches an Editor instance to a mount point, seeds it with an
// existing record's schema (edit mode) or a blank schema (create mode), keeps
// the latest schema the editor reports and turns it into catalog records on
// save. The session is a strict state machine:
//
//	Empty -> Attaching -> Ready -> Destroyed
//	            ^                      |
//	            +-------- Mount -------+
//
// Destroyed is terminal for one editor instance only; mounting again starts a
// new cycle. At most one instance is attached to the mount point at any time,
// and results of attachments abandoned by a later Mount or Detach are
// discarded.
package builder
