// Package checkpoint keeps the append-only CSV log of processed item codes.
//
// Each row records one stored artifact for an item:
//
//	Item Code,Saved Image Path
//	A1,/A1/A1_001.jpg
//	A1,/A1/A1_002.jpg
//	A2,
//
// An item that produced no artifacts gets exactly one row carrying the empty
// marker ("" for local storage, NO_IMAGES_FOUND for Drive). Every item code
// present in the file counts as processed on the next run, whatever its
// outcome. Rows are flushed and fsynced before Append returns, so a crash
// between items leaves a log that can be resumed from.
package checkpoint
