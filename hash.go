package rscache

// NameHash computes the djd2 hash used to look up an archive by its name
// within a reference table's name_hashes field.
func NameHash(name string) int32 {
	var hash int32
	for i := 0; i < len(name); i++ {
		hash = int32(name[i]) + (hash << 5) - hash
	}
	return hash
}
