package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewOperationID returns the id shared by the journal rows of one
// reconciliation act.
func NewOperationID() string {
	return uuid.NewString()
}

// NewBatchID identifies one imported statement batch.
func NewBatchID() string {
	return uuid.NewString()
}

// SourceKey builds the dedup key for an ingested row from its identifying
// fields. The key must be deterministic: importing the same statement twice
// has to produce the same keys so CreateIfAbsent can drop the duplicates.
func SourceKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "_", "-")
		if p == "" {
			p = "na"
		}
		cleaned = append(cleaned, p)
	}
	return strings.Join(cleaned, "_")
}

const receivableIDPrefix = "PEND_"

func formatReceivableID(n int) string {
	return fmt.Sprintf("%s%06d", receivableIDPrefix, n)
}

func parseReceivableID(id string) (int, bool) {
	if !strings.HasPrefix(id, receivableIDPrefix) {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimPrefix(id, receivableIDPrefix), "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}
