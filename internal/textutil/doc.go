// Package textutil normalizes upstream title names into a stable display
// form: control characters dropped, whitespace collapsed, and words
// title-cased without lowering existing capitals.
package textutil
