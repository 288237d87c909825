// Package schema is the single definition of the tables exchanged by the
// incidentgraph stages.
//
// Column names, header normalization, the typed record for every table,
// the on-disk value layouts and the error taxonomy all live here so the
// ingest, dedupe, render and verify packages never repeat a column-name
// string literal.
//
// Tables:
//
//	raw incident dataset   -> RawIncidentRecord      (external producer)
//	cleaned incident table -> CleanedIncidentRecord  (ingest)
//	day-area edge table    -> DayAreaEdge            (dedupe)
//	degree-count table     -> DegreeCountRow         (external producer, render consumer)
package schema
