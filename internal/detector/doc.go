// Package detector implements the configurable detection engine that turns
// raw event records into detections.
//
// Two detector kinds exist: ScoringDetector applies rule-based field,
// keyword and location scoring with optional temporal-spatial clustering;
// HeadlineClassifierDetector delegates headline classification to an
// external model server. Both are built once from an immutable
// configuration document and are safe to reuse across runs.
package detector
