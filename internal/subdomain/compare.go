package subdomain

// Comparison is the reconciliation of direct collection against an
// indexed source.
type Comparison struct {
	// Hidden holds hosts seen by direct collection or brute force that the
	// indexed source does not know about. Indexed-only hosts are never
	// hidden.
	Hidden Set
	// Total is the union of every input.
	Total Set
}

// Compare computes hidden = (deep ∪ brute) − indexed and
// total = deep ∪ indexed ∪ brute. Inputs are not modified.
func Compare(deep, indexed, brute Set) Comparison {
	return Comparison{
		Hidden: Difference(Union(deep, brute), indexed),
		Total:  Union(deep, indexed, brute),
	}
}
