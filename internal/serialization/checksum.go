package serialization

import "crypto/sha256"

// ComputeChecksum hashes the tensor data section.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}
