package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/iacguard/iacguard/pkg/utils"
)

// ContentHash is the stable fingerprint identifying "the same issue" across
// scans. It covers exactly (check_id, normalized file path, line-or-empty,
// resource-or-empty); severity and description drift never change it.
func ContentHash(checkID, filePath string, line int, resourceName string) string {
	lineStr := ""
	if line > 0 {
		lineStr = strconv.Itoa(line)
	}
	input := strings.Join([]string{
		checkID,
		utils.NormalizeRelPath(filePath),
		lineStr,
		resourceName,
	}, "|")
	sum := xxh3.Hash128([]byte(input))
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}
