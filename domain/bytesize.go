package domain

import (
	"math"
	"strconv"
)

const KB = 1024
const MB = KB * KB
const GB = KB * MB

// MaxTransferBytes is the per-file ceiling of the chat platform.
// Exactly 2 GiB, the only canonical constant for this limit.
const MaxTransferBytes int64 = 2 * GB

// DefaultMaxFolderBytes bounds the total size of a folder transfer.
const DefaultMaxFolderBytes int64 = 1 * GB

var sizeUnits = [...]string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a byte count the way users expect in chat captions:
// "0 Bytes", "1.5 KB", "500 MB". Two decimals at most, trailing zeros dropped.
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(KB)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}

	value := float64(bytes) / math.Pow(KB, float64(i))
	value = math.Round(value*100) / 100

	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}
