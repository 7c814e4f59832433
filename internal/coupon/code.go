// Package coupon builds, parses and issues reward coupon codes of the form
//
//	PIZZA-<CONFERENCE_ID>-<TIER>-<USER_HASH>-<HHMM>
//
// The string form is the authoritative representation; vendors parse it.
package coupon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

const (
	Prefix         = "PIZZA"
	UserHashLength = 6
	separator      = "-"
	segments       = 5
	compactLayout  = "1504"
)

var (
	ErrInvalidFormat      = errors.New("coupon: invalid format")
	ErrConferenceMismatch = errors.New("coupon: conference mismatch")
	ErrUnknownTier        = errors.New("coupon: unknown tier")
)

// Code is a parsed coupon.
type Code struct {
	ConferenceID    string            `json:"conferenceId"`
	Tier            models.RewardTier `json:"tier"`
	UserHash        string            `json:"userHash"`
	IssuedAtCompact string            `json:"issuedAtCompact"`
}

// New validates the fields and returns a Code issued at t (UTC).
func New(conferenceID string, tier models.RewardTier, userHash string, t time.Time) (Code, error) {
	c := Code{
		ConferenceID:    conferenceID,
		Tier:            tier,
		UserHash:        userHash,
		IssuedAtCompact: CompactTime(t),
	}
	if err := c.Validate(); err != nil {
		return Code{}, err
	}
	return c, nil
}

// String renders the canonical encoding.
func (c Code) String() string {
	return strings.Join([]string{Prefix, c.ConferenceID, string(c.Tier), c.UserHash, c.IssuedAtCompact}, separator)
}

// Validate checks every field against the canonical encoding rules.
func (c Code) Validate() error {
	if err := ValidateConferenceID(c.ConferenceID); err != nil {
		return err
	}
	if !c.Tier.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTier, c.Tier)
	}
	if !validUserHash(c.UserHash) {
		return fmt.Errorf("%w: user hash %q", ErrInvalidFormat, c.UserHash)
	}
	if _, ok := parseCompact(c.IssuedAtCompact); !ok {
		return fmt.Errorf("%w: time %q", ErrInvalidFormat, c.IssuedAtCompact)
	}
	return nil
}

// TimeIssued formats the compact time as HH:MM.
func (c Code) TimeIssued() string {
	minutes, ok := parseCompact(c.IssuedAtCompact)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Parse decodes a coupon string. When conferenceID is non-empty the coupon
// must belong to it. Structural problems are ErrInvalidFormat, a foreign
// conference is ErrConferenceMismatch and an unrecognised tier is ErrUnknownTier.
func Parse(s, conferenceID string) (Code, error) {
	parts := strings.Split(strings.TrimSpace(s), separator)
	if len(parts) != segments {
		return Code{}, fmt.Errorf("%w: expected %d segments, got %d", ErrInvalidFormat, segments, len(parts))
	}
	if parts[0] != Prefix {
		return Code{}, fmt.Errorf("%w: prefix %q", ErrInvalidFormat, parts[0])
	}
	c := Code{
		ConferenceID:    parts[1],
		Tier:            models.RewardTier(parts[2]),
		UserHash:        parts[3],
		IssuedAtCompact: parts[4],
	}
	if err := ValidateConferenceID(c.ConferenceID); err != nil {
		return Code{}, err
	}
	if !validUserHash(c.UserHash) {
		return Code{}, fmt.Errorf("%w: user hash %q", ErrInvalidFormat, c.UserHash)
	}
	if _, ok := parseCompact(c.IssuedAtCompact); !ok {
		return Code{}, fmt.Errorf("%w: time %q", ErrInvalidFormat, c.IssuedAtCompact)
	}
	if conferenceID != "" && c.ConferenceID != conferenceID {
		return Code{}, fmt.Errorf("%w: coupon is for %q, expected %q", ErrConferenceMismatch, c.ConferenceID, conferenceID)
	}
	if !c.Tier.Valid() {
		return Code{}, fmt.Errorf("%w: %q", ErrUnknownTier, c.Tier)
	}
	return c, nil
}

// HashUser derives the non-reversible short user hash: the first six hex
// digits of SHA-256(userID), upper-cased.
func HashUser(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:UserHashLength]
}

// CompactTime encodes t as HHMM in UTC.
func CompactTime(t time.Time) string {
	return t.UTC().Format(compactLayout)
}

// ValidateConferenceID rejects ids that would break the segment layout.
func ValidateConferenceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty conference id", ErrInvalidFormat)
	}
	if !alnum(id) {
		return fmt.Errorf("%w: conference id %q must be alphanumeric", ErrInvalidFormat, id)
	}
	return nil
}

func validUserHash(h string) bool {
	return len(h) == UserHashLength && alnum(h) && strings.ToUpper(h) == h
}

// parseCompact returns minutes since midnight for a valid HHMM value.
func parseCompact(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	hh, _ := strconv.Atoi(s[:2])
	mm, _ := strconv.Atoi(s[2:])
	if hh > 23 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

func alnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Reason maps a parse error onto the machine-readable rejection reason vendors
// receive: invalid_format, conference_mismatch or unknown_tier.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrConferenceMismatch):
		return "conference_mismatch"
	case errors.Is(err, ErrUnknownTier):
		return "unknown_tier"
	default:
		return "invalid_format"
	}
}
