package platform

// Package platform provides filesystem helpers shared across the download
// pipeline: filename sanitization, directory creation, fsync discipline and
// the default downloads location.
