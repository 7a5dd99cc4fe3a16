package swe

// symbolCandidates lists the export names a primitive may carry, in lookup
// order. Some builds export C symbols with a leading underscore.
func symbolCandidates(name string) []string {
	return []string{
		name,
		"_" + name,
	}
}
