// Package kyc checks identity details and documents before a proposal can
// leave the KYC stage.
package kyc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"presale/logging"
	"presale/models"
	proposalValidator "presale/validators/proposal"
)

// MaxDocumentSize is the largest accepted upload.
const MaxDocumentSize = 10 << 20

var panRegex = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`)

var allowedTypes = []string{"image/jpeg", "image/png", "application/pdf"}

// ValidatePAN reports whether pan is a well-formed PAN. Case matters.
func ValidatePAN(pan string) bool {
	return panRegex.MatchString(pan)
}

// Document is an upload as received. MIMEType is filled in by ValidateDocument
// from the content, never from the client's claim.
type Document struct {
	Kind     models.KYCDocumentKind
	FileName string
	MIMEType string
	Size     int64
	Content  []byte
}

// DocumentError rejects an upload for its type or size.
type DocumentError struct {
	FileName string
	Reason   string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q rejected: %s", e.FileName, e.Reason)
}

// ValidateDocument accepts JPEG, PNG and PDF files up to MaxDocumentSize.
func ValidateDocument(doc *Document) error {
	size := doc.Size
	if n := int64(len(doc.Content)); n > size {
		size = n
	}
	if size > MaxDocumentSize {
		return &DocumentError{FileName: doc.FileName, Reason: "file is larger than 10 MB"}
	}
	if len(doc.Content) == 0 {
		return &DocumentError{FileName: doc.FileName, Reason: "file is empty"}
	}

	mt := mimetype.Detect(doc.Content)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			doc.MIMEType = allowed
			return nil
		}
	}
	return &DocumentError{
		FileName: doc.FileName,
		Reason:   fmt.Sprintf("type %s is not allowed, use JPEG, PNG or PDF", mt.String()),
	}
}

// Form is what an agent submits on the KYC stage.
type Form struct {
	CKYCNumber string
	PAN        string
	PANName    string
	Documents  []Document
}

func (f Form) hasPANDocument() bool {
	for _, d := range f.Documents {
		if d.Kind == models.DocumentPAN {
			return true
		}
	}
	return false
}

// CanProceed is true when a CKYC number or a valid PAN is present and a PAN
// document is attached.
func CanProceed(f Form) bool {
	return f.identified() && f.hasPANDocument()
}

func (f Form) identified() bool {
	return strings.TrimSpace(f.CKYCNumber) != "" || ValidatePAN(f.PAN)
}

// Gate evaluates KYC forms. With AllowGateBypass set, the PAN document is not
// required; identity details still are.
type Gate struct {
	cfg models.WorkflowConfig
}

func NewGate(cfg models.WorkflowConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate validates every document, then decides through CanProceed. The PAN
// is upper-cased and trimmed before the format check. It returns the PAN
// validation to store, a *DocumentError for the first bad upload, or a
// *proposalValidator.ValidationError listing what is missing.
func (g *Gate) Evaluate(f *Form) (models.PanValidation, error) {
	f.PAN = strings.ToUpper(strings.TrimSpace(f.PAN))
	f.CKYCNumber = strings.TrimSpace(f.CKYCNumber)

	for i := range f.Documents {
		if err := ValidateDocument(&f.Documents[i]); err != nil {
			return models.PanValidation{}, err
		}
	}

	pv := models.PanValidation{PAN: f.PAN, Name: strings.TrimSpace(f.PANName), Valid: ValidatePAN(f.PAN)}
	if CanProceed(*f) {
		return pv, nil
	}
	if g.cfg.AllowGateBypass && f.identified() {
		logging.Warn().
			Add(logging.Component("kyc")).
			Msg("PAN document requirement bypassed by configuration")
		return pv, nil
	}

	errs := &proposalValidator.ValidationError{Stage: models.StageKYC}
	switch {
	case f.identified():
	case f.PAN == "":
		errs.Fields = append(errs.Fields, proposalValidator.FieldError{
			Field: "pan", Rule: "required", Message: "PAN or CKYC number is required!",
		})
	default:
		errs.Fields = append(errs.Fields, proposalValidator.FieldError{
			Field: "pan", Rule: "pan", Message: "Invalid PAN format!",
		})
	}
	if !f.hasPANDocument() && !g.cfg.AllowGateBypass {
		errs.Fields = append(errs.Fields, proposalValidator.FieldError{
			Field: "panDocument", Rule: "required", Message: "PAN document is required!",
		})
	}
	return models.PanValidation{}, errs
}
