// Package storage persists downloaded images and returns the artifact
// reference recorded in the checkpoint.
//
// Two targets implement Store:
//   - LocalStore writes <root>/<item code>/<name> atomically and returns the
//     relative path "/<item code>/<name>".
//   - DriveStore uploads into a Google Drive folder named after the item code
//     (looked up under a fixed parent, created when absent) and returns the
//     Drive file id.
//
// Item codes are sanitized with SanitizeName before being used as a
// directory or folder name.
package storage
