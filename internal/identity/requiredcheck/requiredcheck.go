// Package requiredcheck decides whether a set of accepted documents
// satisfies the configured required document set: a primary document plus a
// distinct secondary, with the configured count of distinct physical types.
package requiredcheck

import (
	"enrolld/internal/identity/models"
)

// Check evaluates accepted documents against the required set. It is a pure
// function, safe to call repeatedly.
type Check struct {
	requiredCount int
	primaryType   models.DocumentType
}

// New constructs the check from configuration.
func New(requiredCount int, primaryType models.DocumentType) *Check {
	return &Check{requiredCount: requiredCount, primaryType: primaryType}
}

var physicalTypes = []models.DocumentType{
	models.DocumentTypeIDCard,
	models.DocumentTypePassport,
	models.DocumentTypeDrivingLicense,
}

// Evaluate reports whether the accepted documents contain exactly the
// configured count of distinct physical document types, including a complete
// primary document and at least one distinct complete secondary document.
// Presence counts toward the distinct total even when a type is only
// partially captured. Selfie photos never count.
func (c *Check) Evaluate(accepted []models.DocumentVerification) bool {
	sides := make(map[models.DocumentType]map[models.CardSide]bool)
	for _, doc := range accepted {
		if doc.Status != models.DocumentStatusAccepted {
			continue
		}
		if !isPhysical(doc.Type) {
			continue
		}
		if sides[doc.Type] == nil {
			sides[doc.Type] = make(map[models.CardSide]bool)
		}
		sides[doc.Type][doc.Side] = true
	}

	if len(sides) != c.requiredCount {
		return false
	}
	if !complete(c.primaryType, sides[c.primaryType]) {
		return false
	}
	// A second, distinct complete document besides the primary.
	for _, t := range physicalTypes {
		if t != c.primaryType && complete(t, sides[t]) {
			return true
		}
	}
	return false
}

// complete reports whether the captured sides form a whole document: both
// sides for two-sided types, any single capture otherwise.
func complete(t models.DocumentType, captured map[models.CardSide]bool) bool {
	if len(captured) == 0 {
		return false
	}
	if t.TwoSided() {
		return captured[models.CardSideFront] && captured[models.CardSideBack]
	}
	return true
}

func isPhysical(t models.DocumentType) bool {
	for _, p := range physicalTypes {
		if t == p {
			return true
		}
	}
	return false
}
