package rdf

// Well-known namespaces.
const (
	RDFNS       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS      = "http://www.w3.org/2000/01/rdf-schema#"
	XSDNS       = "http://www.w3.org/2001/XMLSchema#"
	PartitionNS = "http://rdf2rest.org/partition:"

	XSDString = XSDNS + "string"
)

var (
	// Type is rdf:type.
	Type = IRI(RDFNS + "type")

	// PartitionRoot is the object of the synthetic marker triple
	// (root, rdf:type, partition:Root) that tags partition entry points.
	PartitionRoot = IRI(PartitionNS + "Root")
)

// RootMarker returns the marker triple for a partition root.
func RootMarker(root Term) Triple {
	return Triple{S: root, P: Type, O: PartitionRoot}
}
