// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package canon

// Event is the tagged record the hasher emits once for every node it
// fingerprints. The document root is reported with Parent == nil (and
// IsPrimitive set if the root is a scalar); every other node, composite or
// primitive, is reported exactly once by its parent, with Parent and
// ChildKey set. A non-root composite is never reported a second time for
// itself.
type Event struct {
	Hash        Fingerprint
	Location    string
	IsPrimitive bool
	Parent      *Fingerprint
	ChildKey    string
}

// Visitor is the side-channel the hasher reports traversal events to. Two
// concrete implementations are used by the core: AnalysisVisitor and
// WriteVisitor.
type Visitor interface {
	Visit(Event)
}

// AnalysisVisitor accumulates the set of every fingerprint observed during a
// traversal, nothing more. It is used by the Analyzer's per-source re-hash in
// coverage calculations, and anywhere else only the hash set (not the graph
// edges) is needed.
type AnalysisVisitor struct {
	Hashes map[Fingerprint]struct{}
}

// NewAnalysisVisitor returns a ready-to-use AnalysisVisitor.
func NewAnalysisVisitor() *AnalysisVisitor {
	return &AnalysisVisitor{Hashes: make(map[Fingerprint]struct{})}
}

// Visit records the event's hash.
func (v *AnalysisVisitor) Visit(e Event) {
	v.Hashes[e.Hash] = struct{}{}
}

// IndexRow is one row destined for the hash_index table: "fingerprint was
// observed at location".
type IndexRow struct {
	Hash     Fingerprint
	Location string
}

// GraphRow is one row destined for the hash_graph table: an edge from a
// composite parent to one of its immediate children.
type GraphRow struct {
	ParentHash Fingerprint
	ChildKey   string
	ChildHash  Fingerprint
}

// DataRow is one row destined for the hash_to_data table: the canonical
// serialization of a primitive leaf.
type DataRow struct {
	Hash Fingerprint
	Data string
}

// WriteVisitor accumulates the three batches a full ingest needs to persist:
// the location index, the graph edges, and the primitive data. It is the Go
// analogue of the original WriteContextVisitor.
type WriteVisitor struct {
	Index []IndexRow
	Graph []GraphRow
	Data  []DataRow
}

// NewWriteVisitor returns a ready-to-use WriteVisitor.
func NewWriteVisitor() *WriteVisitor {
	return &WriteVisitor{}
}

// Visit appends the event to the appropriate batch(es).
func (v *WriteVisitor) Visit(e Event) {
	v.Index = append(v.Index, IndexRow{Hash: e.Hash, Location: e.Location})
	if e.Parent != nil {
		v.Graph = append(v.Graph, GraphRow{ParentHash: *e.Parent, ChildKey: e.ChildKey, ChildHash: e.Hash})
	}
}

// VisitPrimitiveData is called by the hasher alongside Visit for every
// primitive node, carrying the canonical serialization that hash_to_data
// needs. It is split out from Event because the event itself only carries
// identifying information, not payload.
func (v *WriteVisitor) VisitPrimitiveData(hash Fingerprint, data string) {
	v.Data = append(v.Data, DataRow{Hash: hash, Data: data})
}
