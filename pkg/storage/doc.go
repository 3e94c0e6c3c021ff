// Package storage writes and reads the flat files of a dataset generation.
//
// Each topic gets its own directory under the generation root:
//
//	dataset1/
//	    crypto/
//	        tweets.csv                one row per collected post
//	        media.csv                 one row per attachment linked to a post
//	        2023-03-01T12_00_00.csv   engagement snapshot, one per cycle
//
// Text is sanitized rather than quoted, so the files stay trivially splittable
// on commas. tweets.csv and media.csv are replaced atomically on every fetch;
// snapshot files are append-only and WriteSnapshot refuses to overwrite one.
package storage
