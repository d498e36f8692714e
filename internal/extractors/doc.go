// Package extractors provides the file-type extractors that turn source
// files into raw text for the ingestion pipeline, and the registry that
// selects one by extension.
package extractors
