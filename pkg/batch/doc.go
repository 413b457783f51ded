// Package batch drives one resumable pass over the input list.
//
// A run moves through Loading, Filtering, Processing and Done. Loading reads
// the checkpoint (best effort) and the input list (required). Filtering
// drops every item code already in the checkpoint, keeping input order.
// Processing handles the remaining items one at a time: fetch the product,
// download its images, append the outcome to the checkpoint, then pause
// before the next item. A failing item is logged and counted; it never stops
// the batch.
//
// When a Syncer is configured the checkpoint is pushed whenever the sync
// interval has elapsed after an item, and once more when the run ends.
package batch
