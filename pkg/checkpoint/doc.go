// Package checkpoint persists the progress of a dataset generation so an
// interrupted run can continue its refresh cycles.
//
// A checkpoint records the generation number, its dataset directory, the
// topic labels it collects, whether the initial fetch finished and how many
// refresh cycles are done. Post ids and counters are not stored here; they
// are recovered from the latest snapshot file of each topic.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/twdataset/checkpoints/
//   - macOS: ~/Library/Application Support/twdataset/checkpoints/
//   - Windows: %APPDATA%/twdataset/checkpoints/
package checkpoint
