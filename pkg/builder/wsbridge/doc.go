// Package wsbridge implements builder.Editor for a browser page hosting the
// form.io builder. The page is served by the bridge and talks back over a
// WebSocket: the server sends seed, reset and destroy commands; the page
// answers with ready, change and error notifications.
package wsbridge
