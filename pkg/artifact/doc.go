// Package artifact packages a form record and a style configuration into the
// outputs used to place the form on external pages: a standalone HTML
// document, a drop-in inline script snippet and the descriptor of the preview
// resource served back to the operator.
//
// Generation is pure. The same record and configuration always produce
// byte-identical output; nothing time dependent or random is embedded. The
// generator does not validate the style configuration: unknown width modes
// are interpolated as pixel values and custom CSS is inserted verbatim unless
// a stricter StylePolicy is configured.
package artifact
