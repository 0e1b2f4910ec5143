package ledger

import (
	"strconv"
	"strings"

	"github.com/illegalcall/avocatel/internal/models"
)

// ParseMetadata reads {userId, credits} from checkout session metadata.
// Metadata is untrusted: credits that are absent, non-numeric or out of
// range parse as 0 and the result is then rejected by Valid.
func ParseMetadata(raw map[string]string) models.CheckoutMetadata {
	meta := models.CheckoutMetadata{
		UserID: strings.TrimSpace(raw[models.MetadataUserID]),
	}
	if credits, err := strconv.Atoi(strings.TrimSpace(raw[models.MetadataCredits])); err == nil {
		meta.Credits = credits
	}
	return meta
}
