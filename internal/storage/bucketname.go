package storage

import (
	"regexp"
	"strings"

	"github.com/bencyrus/safeupload/internal/apperr"
)

var (
	bucketCharset = regexp.MustCompile(`^[a-z0-9.-]+$`)
	ipShaped      = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

// ValidateBucketName checks name against the bucket naming grammar. It does
// not talk to any store. Violations are validation errors whose message
// names the broken rule.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return apperr.Validation("Bucket name must be between 3 and 63 characters")
	}
	if !bucketCharset.MatchString(name) {
		return apperr.Validation("Bucket name can only contain lowercase letters, numbers, dots, and hyphens")
	}
	if !isAlnum(name[0]) || !isAlnum(name[len(name)-1]) {
		return apperr.Validation("Bucket name must start and end with a letter or number")
	}
	if strings.Contains(name, "..") {
		return apperr.Validation("Bucket name cannot contain consecutive dots")
	}
	if ipShaped.MatchString(name) {
		return apperr.Validation("Bucket name cannot be formatted as an IP address")
	}
	return nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
