// Package testsupport provides shared constructors for tests: temp-dir
// configs and pre-opened stores.
package testsupport
