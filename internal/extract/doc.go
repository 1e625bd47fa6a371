// Package extract holds the shared building blocks of document extraction:
// document type detection, currency and percentage parsing, and the health
// plan term lexicon used for keyword tagging and benefit classification.
//
// The format-specific extractors live in the narrative and tabular
// subpackages and depend on this package, never the other way around.
package extract
