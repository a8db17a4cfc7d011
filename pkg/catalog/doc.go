// Package catalog stores the form records managed by the console. Memory
// keeps them in process and Bolt persists them to a local bbolt file.
package catalog
