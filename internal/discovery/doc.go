// Package discovery scans a media tree into workspace items with stable,
// path-derived ids so repeated scans of an unchanged tree are identical.
package discovery
