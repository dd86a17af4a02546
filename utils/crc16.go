package utils

import (
	"github.com/howeyc/crc16"
)

func CalculateCRC16(data []byte) uint16 {
	crc := crc16.Checksum(data, crc16.IBMTable)
	return crc
}

// KeyPartition maps key to a partition in [0, partitions). It depends only on
// the key bytes and the partition count.
func KeyPartition(key []byte, partitions uint64) uint64 {
	if partitions == 0 {
		return 0
	}
	return uint64(CalculateCRC16(key)) % partitions
}
