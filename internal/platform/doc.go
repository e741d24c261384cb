// Package platform contains OS and filesystem glue: the supported-link
// classifier, temp media file naming, output file lookup after extraction,
// and cleanup of transient media files.
package platform
