// Package console holds the Embed/Preview view: the selected form, the style
// applied to it, the generated artifacts and the live preview handle.
package console
