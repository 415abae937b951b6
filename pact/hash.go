package pact

import "hash/fnv"

// HashBytes hashes raw bytes to a routing key with FNV-1a.
func HashBytes(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// HashString hashes a string to a routing key with FNV-1a.
func HashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
