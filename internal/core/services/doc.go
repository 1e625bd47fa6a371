// Package services contains the application logic of the plan document
// engine: the ingestion pipeline and batch orchestrator, version control,
// query analysis, retrieval fusion, cross-referencing and response
// synthesis.
//
// Services depend only on the driven ports and implement the driving
// ports. Optional capabilities (embedding, vector index, graph store, LLM)
// may be nil; every service degrades rather than fails when one is
// missing.
package services
